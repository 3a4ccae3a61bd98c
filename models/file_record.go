package models

import "time"

// Content classes derived once from the declared media type at upload time.
const (
	ClassImage    = "image"
	ClassVideo    = "video"
	ClassDocument = "document"
)

// FileRecord is the metadata row for one stored blob. StoragePath is the
// join key between the metadata store and the object store: every record
// is supposed to reference a live blob, and every blob uploaded through
// the vault is supposed to have exactly one record. The vault package
// keeps that invariant by ordering its writes; the reconciler cleans up
// the residue when a crash lands between the two.
//
// All fields are immutable after insert except soft state managed by GORM.
type FileRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"not null;index:idx_file_records_owner_created,priority:1" json:"owner_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Size        int64     `gorm:"not null" json:"size"`
	Type        string    `gorm:"size:16;not null" json:"type"`
	URL         string    `gorm:"size:1024;not null" json:"url"`
	StoragePath string    `gorm:"size:1024;not null;uniqueIndex" json:"storage_path"`
	CreatedAt   time.Time `gorm:"index:idx_file_records_owner_created,priority:2" json:"created_at"`
}
