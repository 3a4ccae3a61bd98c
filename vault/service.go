package vault

import (
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/filevault/models"
)

// BlobInfo describes one object in the blob store, as seen by the reconciler.
type BlobInfo struct {
	Key          string
	LastModified time.Time
}

// BlobStore is the capability boundary to the object store. Remove is
// idempotent: removing a key that does not exist is not an error.
// PublicURL is a pure derivation and performs no I/O.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]BlobInfo, error)
	PublicURL(key string) string
}

// FileRepository is the capability boundary to the metadata store.
// FindByID returns (nil, nil) when no record exists. DeleteByID is idempotent.
type FileRepository interface {
	Insert(ctx context.Context, rec *models.FileRecord) error
	FindByID(ctx context.Context, id uint) (*models.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.FileRecord, error)
	ListAll(ctx context.Context) ([]models.FileRecord, error)
	DeleteByID(ctx context.Context, id uint) error
}

// KeyGenerator derives a collision-resistant, user-scoped storage key.
type KeyGenerator interface {
	Generate(ownerID uint, filename string) string
}

// IncomingFile is one file of an upload batch. Open is called at most once,
// and only when the batch reaches this file; files after an aborted index
// are never opened.
type IncomingFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadReport is the outcome of a batch upload. Succeeded holds the
// records committed before any failure, in input order. FailedAt is the
// index of the file that failed, or -1 when every file was processed.
// Committed files are never rolled back on a later failure.
type UploadReport struct {
	Succeeded []models.FileRecord
	FailedAt  int
	Err       error
}

// Complete reports whether every file of the batch was processed.
func (r UploadReport) Complete() bool { return r.FailedAt < 0 }

// Service orchestrates uploads, deletes and listings across the blob store
// and the metadata store. The two stores fail independently and no
// transaction spans them; both write paths are ordered so that a crash
// between the two steps leaves the safer residue (an orphaned blob on
// upload, a dangling record on delete).
type Service struct {
	blobs BlobStore
	files FileRepository
	keys  KeyGenerator
	log   *zap.SugaredLogger
}

// NewService wires the orchestrator with its injected capabilities.
func NewService(blobs BlobStore, files FileRepository, keys KeyGenerator, log *zap.SugaredLogger) *Service {
	return &Service{blobs: blobs, files: files, keys: keys, log: log}
}

// Classify maps a declared media type to a content class. The declared type
// is trusted as-is and never re-derived from the bytes.
func Classify(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.ClassImage
	case strings.HasPrefix(contentType, "video/"):
		return models.ClassVideo
	default:
		return models.ClassDocument
	}
}

// UploadBatch stores each file and inserts its metadata record, strictly in
// input order. The first blob or metadata failure aborts the remaining
// batch; files committed before the failure stay committed and are listed
// in the report. A metadata failure after a successful put leaves an
// orphaned blob, which is logged and left for the reconciler rather than
// compensated inline.
func (s *Service) UploadBatch(ctx context.Context, ownerID uint, files []IncomingFile) UploadReport {
	report := UploadReport{Succeeded: []models.FileRecord{}, FailedAt: -1}
	if len(files) == 0 {
		report.Err = ErrEmptyBatch
		return report
	}

	for i, f := range files {
		key := s.keys.Generate(ownerID, f.Name)

		src, err := f.Open()
		if err != nil {
			report.FailedAt = i
			report.Err = &StorageError{Key: key, Err: err}
			return report
		}
		err = s.blobs.Put(ctx, key, src, f.Size, f.ContentType)
		src.Close()
		if err != nil {
			report.FailedAt = i
			report.Err = &StorageError{Key: key, Err: err}
			s.log.Errorw("blob put failed, aborting batch",
				"owner_id", ownerID, "index", i, "key", key, "err", err)
			return report
		}

		rec := models.FileRecord{
			OwnerID:     ownerID,
			Name:        f.Name,
			Size:        f.Size,
			Type:        Classify(f.ContentType),
			URL:         s.blobs.PublicURL(key),
			StoragePath: key,
		}
		if err := s.files.Insert(ctx, &rec); err != nil {
			report.FailedAt = i
			report.Err = &MetadataError{Op: "insert", Err: err}
			s.log.Errorw("record insert failed after blob put, blob is orphaned",
				"owner_id", ownerID, "index", i, "key", key, "err", err)
			return report
		}
		report.Succeeded = append(report.Succeeded, rec)
	}
	return report
}

// Delete removes the blob first and the metadata record second. A missing
// record is a successful no-op; a crash between the two steps leaves a
// dangling record, which stays visible to the reconciler, instead of an
// unreferenced blob. Every step is idempotent, so a full retry is safe.
func (s *Service) Delete(ctx context.Context, ownerID uint, recordID uint) error {
	rec, err := s.files.FindByID(ctx, recordID)
	if err != nil {
		return &MetadataError{Op: "find", Err: err}
	}
	if rec == nil {
		s.log.Debugw("delete of absent record treated as no-op", "record_id", recordID)
		return nil
	}
	if rec.OwnerID != ownerID {
		return ErrNotOwner
	}

	if err := s.blobs.Remove(ctx, rec.StoragePath); err != nil {
		return &StorageError{Key: rec.StoragePath, Err: err}
	}
	if err := s.files.DeleteByID(ctx, rec.ID); err != nil {
		return &MetadataError{Op: "delete", Err: err}
	}
	return nil
}

// List returns the owner's records newest-first. A metadata store failure
// degrades to an empty slice: the error is logged but not surfaced, so the
// caller cannot tell it apart from an empty vault. Clients depend on this.
func (s *Service) List(ctx context.Context, ownerID uint) []models.FileRecord {
	recs, err := s.files.ListByOwner(ctx, ownerID)
	if err != nil {
		s.log.Errorw("list query failed, returning empty result", "owner_id", ownerID, "err", err)
		return []models.FileRecord{}
	}
	if recs == nil {
		recs = []models.FileRecord{}
	}
	return recs
}
