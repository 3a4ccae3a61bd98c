package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/filevault/models"
)

// Files implements vault.FileRepository on GORM/MySQL.
type Files struct {
	db *gorm.DB
}

// NewFiles wraps the shared GORM handle.
func NewFiles(db *gorm.DB) *Files {
	return &Files{db: db}
}

// Insert persists a new record; ID and CreatedAt are assigned by the store.
func (r *Files) Insert(ctx context.Context, rec *models.FileRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindByID returns (nil, nil) when the record does not exist.
func (r *Files) FindByID(ctx context.Context, id uint) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByOwner returns the owner's records newest-first. Ties on created_at
// break by id descending so the order stays deterministic.
func (r *Files) ListByOwner(ctx context.Context, ownerID uint) ([]models.FileRecord, error) {
	var recs []models.FileRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// ListAll returns every record, used by the reconciliation sweep.
func (r *Files) ListAll(ctx context.Context) ([]models.FileRecord, error) {
	var recs []models.FileRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteByID is idempotent: deleting an absent id is not an error.
func (r *Files) DeleteByID(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.FileRecord{}, id).Error
}
