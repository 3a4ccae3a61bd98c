package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/filevault/middleware"
	"github.com/cppla/filevault/models"
	"github.com/cppla/filevault/utils"
	"github.com/cppla/filevault/vault"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// memBlobStore is a minimal in-memory vault.BlobStore for handler tests.
type memBlobStore struct {
	objects   map[string][]byte
	putCalls  int
	failPutOn int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}}
}

func (m *memBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	m.putCalls++
	if m.failPutOn != 0 && m.putCalls == m.failPutOn {
		return errors.New("node unavailable")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func (m *memBlobStore) Remove(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memBlobStore) Keys(ctx context.Context) ([]vault.BlobInfo, error) {
	var out []vault.BlobInfo
	for k := range m.objects {
		out = append(out, vault.BlobInfo{Key: k, LastModified: time.Now()})
	}
	return out, nil
}

func (m *memBlobStore) PublicURL(key string) string { return "http://blobs.local/vault/" + key }

// memFileRepo is a minimal in-memory vault.FileRepository.
type memFileRepo struct {
	records map[uint]models.FileRecord
	nextID  uint
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{records: map[uint]models.FileRecord{}, nextID: 1}
}

func (m *memFileRepo) Insert(ctx context.Context, rec *models.FileRecord) error {
	rec.ID = m.nextID
	rec.CreatedAt = time.Now()
	m.nextID++
	m.records[rec.ID] = *rec
	return nil
}

func (m *memFileRepo) FindByID(ctx context.Context, id uint) (*models.FileRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memFileRepo) ListByOwner(ctx context.Context, ownerID uint) ([]models.FileRecord, error) {
	var out []models.FileRecord
	for id := m.nextID; id > 0; id-- {
		if rec, ok := m.records[id]; ok && rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memFileRepo) ListAll(ctx context.Context) ([]models.FileRecord, error) {
	var out []models.FileRecord
	for id := uint(1); id < m.nextID; id++ {
		if rec, ok := m.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memFileRepo) DeleteByID(ctx context.Context, id uint) error {
	delete(m.records, id)
	return nil
}

type seqKeys struct{ n int }

func (s *seqKeys) Generate(ownerID uint, filename string) string {
	s.n++
	return fmt.Sprintf("%d/key%d", ownerID, s.n)
}

func newFilesTestRouter(blobs *memBlobStore, repo *memFileRepo) *gin.Engine {
	svc := vault.NewService(blobs, repo, &seqKeys{}, zap.NewNop().Sugar())
	fc := NewFileController(svc)

	r := gin.New()
	files := r.Group("/api/files")
	files.Use(middleware.AuthRequired())
	files.POST("/upload", fc.Upload)
	files.GET("", fc.List)
	files.DELETE("/:id", fc.Delete)
	return r
}

func bearerFor(t *testing.T, userID uint) string {
	t.Helper()
	token, err := utils.GenerateToken(userID, "tester", "tester@example.com", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func multipartBody(t *testing.T, files [][3]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range files {
		name, contentType, payload := f[0], f[1], f[2]
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(payload))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUpload_RequiresAuth(t *testing.T) {
	blobs := newMemBlobStore()
	repo := newMemFileRepo()
	r := newFilesTestRouter(blobs, repo)

	body, contentType := multipartBody(t, [][3]string{{"a.txt", "text/plain", "hello"}})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	// Rejected before any per-file work: neither store was touched.
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, blobs.objects)
	assert.Empty(t, repo.records)
}

func TestUpload_NoFiles(t *testing.T) {
	r := newFilesTestRouter(newMemBlobStore(), newMemFileRepo())

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestUpload_SingleFile(t *testing.T) {
	blobs := newMemBlobStore()
	repo := newMemFileRepo()
	r := newFilesTestRouter(blobs, repo)

	body, contentType := multipartBody(t, [][3]string{{"a.txt", "text/plain", "0123456789"}})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Files []models.FileRecord `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "a.txt", resp.Files[0].Name)
	assert.Equal(t, int64(10), resp.Files[0].Size)
	assert.Equal(t, models.ClassDocument, resp.Files[0].Type)
}

func TestUpload_PartialFailureReportsSucceeded(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.failPutOn = 2
	repo := newMemFileRepo()
	r := newFilesTestRouter(blobs, repo)

	body, contentType := multipartBody(t, [][3]string{
		{"a.txt", "text/plain", "aa"},
		{"b.txt", "text/plain", "bb"},
		{"c.txt", "text/plain", "cc"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Files       []models.FileRecord `json:"files"`
		FailedIndex int                 `json:"failed_index"`
		ErrMsg      string              `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "a.txt", resp.Files[0].Name)
	assert.Equal(t, 1, resp.FailedIndex)
	assert.NotEmpty(t, resp.ErrMsg)

	// Exactly one record persisted; the third file was never attempted.
	assert.Len(t, repo.records, 1)
	assert.Equal(t, 2, blobs.putCalls)
}

func TestUpload_TotalFailure(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.failPutOn = 1
	r := newFilesTestRouter(blobs, newMemFileRepo())

	body, contentType := multipartBody(t, [][3]string{{"a.txt", "text/plain", "aa"}})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestList_ReturnsOwnFilesOnly(t *testing.T) {
	blobs := newMemBlobStore()
	repo := newMemFileRepo()
	r := newFilesTestRouter(blobs, repo)

	upload := func(userID uint, name string) {
		body, contentType := multipartBody(t, [][3]string{{name, "image/png", "img"}})
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", bearerFor(t, userID))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	upload(1, "mine.png")
	upload(2, "theirs.png")

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var recs []models.FileRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "mine.png", recs[0].Name)
	assert.Equal(t, models.ClassImage, recs[0].Type)
}

func TestDelete_MissingRecordIsSuccess(t *testing.T) {
	r := newFilesTestRouter(newMemBlobStore(), newMemFileRepo())

	req := httptest.NewRequest(http.MethodDelete, "/api/files/12345", nil)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":true`)
}

func TestDelete_ForeignOwnerForbidden(t *testing.T) {
	blobs := newMemBlobStore()
	repo := newMemFileRepo()
	r := newFilesTestRouter(blobs, repo)

	body, contentType := multipartBody(t, [][3]string{{"a.txt", "text/plain", "aa"}})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/files/1", nil)
	req.Header.Set("Authorization", bearerFor(t, 2))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Len(t, repo.records, 1)
}

func TestDelete_RemovesBlobAndRecord(t *testing.T) {
	blobs := newMemBlobStore()
	repo := newMemFileRepo()
	r := newFilesTestRouter(blobs, repo)

	body, contentType := multipartBody(t, [][3]string{{"a.txt", "text/plain", "aa"}})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/files/1", nil)
	req.Header.Set("Authorization", bearerFor(t, 1))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, blobs.objects)
	assert.Empty(t, repo.records)
}
