package vault

import (
	"context"
	"time"
)

// ReconcileOptions tunes the background sweep over the two stores.
type ReconcileOptions struct {
	Interval time.Duration
	// OrphanGrace is how old an unreferenced blob must be before it is
	// considered an orphan rather than an upload still in flight.
	OrphanGrace time.Duration
	// DeleteOrphans removes aged orphaned blobs instead of only logging them.
	DeleteOrphans bool
}

// StartReconciler launches a goroutine that periodically repairs the
// residue of interrupted uploads and deletes: records whose blob is gone
// (dangling records) are deleted, and blobs with no referencing record
// (orphaned blobs) are logged and, past the grace period, optionally
// removed. Best-effort; it never blocks the request paths and stops when
// ctx is cancelled.
func (s *Service) StartReconciler(ctx context.Context, opts ReconcileOptions) {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.OrphanGrace <= 0 {
		opts.OrphanGrace = time.Hour
	}
	go func() {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconcileOnce(ctx, opts)
			}
		}
	}()
}

func (s *Service) reconcileOnce(ctx context.Context, opts ReconcileOptions) {
	records, err := s.files.ListAll(ctx)
	if err != nil {
		s.log.Warnw("reconciler: record scan failed", "err", err)
		return
	}

	referenced := make(map[string]bool, len(records))
	for _, rec := range records {
		referenced[rec.StoragePath] = true
		ok, err := s.blobs.Exists(ctx, rec.StoragePath)
		if err != nil {
			s.log.Warnw("reconciler: blob stat failed", "key", rec.StoragePath, "err", err)
			continue
		}
		if ok {
			continue
		}
		// Dangling record: safe residue of an interrupted delete.
		if err := s.files.DeleteByID(ctx, rec.ID); err != nil {
			s.log.Warnw("reconciler: dangling record delete failed", "record_id", rec.ID, "err", err)
			continue
		}
		s.log.Infow("reconciler: removed dangling record", "record_id", rec.ID, "key", rec.StoragePath)
	}

	blobs, err := s.blobs.Keys(ctx)
	if err != nil {
		s.log.Warnw("reconciler: blob scan failed", "err", err)
		return
	}
	for _, b := range blobs {
		if referenced[b.Key] {
			continue
		}
		age := time.Since(b.LastModified)
		if age < opts.OrphanGrace {
			continue
		}
		if !opts.DeleteOrphans {
			s.log.Warnw("reconciler: orphaned blob detected", "key", b.Key, "age", age)
			continue
		}
		if err := s.blobs.Remove(ctx, b.Key); err != nil {
			s.log.Warnw("reconciler: orphaned blob remove failed", "key", b.Key, "err", err)
			continue
		}
		s.log.Infow("reconciler: removed orphaned blob", "key", b.Key, "age", age)
	}
}
