package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cppla/filevault/config"
	"github.com/cppla/filevault/vault"
)

// MinioStore implements vault.BlobStore on a MinIO or any S3-compatible
// endpoint. One client handle is shared process-wide and injected into the
// orchestrator rather than reached for as a global.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinioStore connects to the configured endpoint and ensures the bucket
// exists.
func NewMinioStore(cfg config.AppConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	publicBase := cfg.MinioPublicBase
	if publicBase == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)
	}

	s := &MinioStore{
		client:     client,
		bucket:     cfg.MinioBucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
	}
	return s, nil
}

// Put stores the payload under key with the declared media type.
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Remove deletes the object under key. S3 removal of a missing key already
// succeeds, which gives the idempotency the delete saga relies on.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Exists stats the object and maps "no such key" to (false, nil).
func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Keys lists every object in the bucket for the reconciliation sweep.
func (s *MinioStore) Keys(ctx context.Context) ([]vault.BlobInfo, error) {
	var out []vault.BlobInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, vault.BlobInfo{Key: obj.Key, LastModified: obj.LastModified})
	}
	return out, nil
}

// PublicURL derives the dereferenceable location of a blob from its key.
// Pure derivation, no I/O; the value is cached on the record at upload time.
func (s *MinioStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBase, s.bucket, key)
}
