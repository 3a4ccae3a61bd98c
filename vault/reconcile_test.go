package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RemovesDanglingRecords(t *testing.T) {
	blobs := newFakeBlobStore()
	repo := newFakeFileRepo()
	svc := newTestService(blobs, repo)

	f1, _ := incoming("a.txt", "text/plain", "aa")
	f2, _ := incoming("b.txt", "text/plain", "bb")
	report := svc.UploadBatch(context.Background(), 1, []IncomingFile{f1, f2})
	require.Len(t, report.Succeeded, 2)

	// Simulate a delete that crashed between blob removal and record removal.
	dangling := report.Succeeded[0]
	delete(blobs.objects, dangling.StoragePath)
	delete(blobs.modTime, dangling.StoragePath)

	svc.reconcileOnce(context.Background(), ReconcileOptions{OrphanGrace: time.Hour})

	_, stillThere := repo.records[dangling.ID]
	assert.False(t, stillThere)
	_, intact := repo.records[report.Succeeded[1].ID]
	assert.True(t, intact)
}

func TestReconcile_OrphanedBlobRespectsGrace(t *testing.T) {
	blobs := newFakeBlobStore()
	repo := newFakeFileRepo()
	svc := newTestService(blobs, repo)

	// Simulate an upload that crashed between blob put and record insert.
	blobs.objects["1/orphan.txt"] = []byte("aa")
	blobs.modTime["1/orphan.txt"] = time.Now()

	opts := ReconcileOptions{OrphanGrace: time.Hour, DeleteOrphans: true}
	svc.reconcileOnce(context.Background(), opts)
	// Too fresh: could still be an in-flight upload.
	assert.Contains(t, blobs.objects, "1/orphan.txt")

	blobs.modTime["1/orphan.txt"] = time.Now().Add(-2 * time.Hour)
	svc.reconcileOnce(context.Background(), opts)
	assert.NotContains(t, blobs.objects, "1/orphan.txt")
}

func TestReconcile_OrphanedBlobLoggedOnlyByDefault(t *testing.T) {
	blobs := newFakeBlobStore()
	repo := newFakeFileRepo()
	svc := newTestService(blobs, repo)

	blobs.objects["1/orphan.txt"] = []byte("aa")
	blobs.modTime["1/orphan.txt"] = time.Now().Add(-2 * time.Hour)

	svc.reconcileOnce(context.Background(), ReconcileOptions{OrphanGrace: time.Hour})
	assert.Contains(t, blobs.objects, "1/orphan.txt")
}
