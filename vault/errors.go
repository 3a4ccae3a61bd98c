package vault

import "errors"

var (
	// ErrEmptyBatch rejects upload requests that carry no files.
	ErrEmptyBatch = errors.New("no files to upload")
	// ErrNotOwner rejects operations on a record owned by another user.
	ErrNotOwner = errors.New("file belongs to another user")
)

// StorageError wraps a blob store failure with the key it happened on.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string { return "blob store: " + e.Key + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// MetadataError wraps a metadata store failure.
type MetadataError struct {
	Op  string
	Err error
}

func (e *MetadataError) Error() string { return "metadata store: " + e.Op + ": " + e.Err.Error() }
func (e *MetadataError) Unwrap() error { return e.Err }
