package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/filevault/config"
	"github.com/cppla/filevault/middleware"
	"github.com/cppla/filevault/utils"
	"github.com/cppla/filevault/vault"
)

// uploadFieldNames are the multipart field names accepted for file parts,
// checked in this order so batch ordering stays deterministic.
var uploadFieldNames = []string{"files", "file"}

// FileController exposes the vault orchestrator over HTTP.
type FileController struct {
	svc *vault.Service
}

// NewFileController creates a FileController.
func NewFileController(svc *vault.Service) *FileController {
	return &FileController{svc: svc}
}

// Upload accepts a multipart batch and stores each file. A failure midway
// aborts the remainder but already-committed files are kept and reported,
// so a partial batch still answers 200 with the failure detail attached.
func (f *FileController) Upload(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	maxSize := int64(config.Get().UploadMaxSizeMB) << 20
	form, err := ctx.MultipartForm()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, "no files uploaded")
		return
	}

	var incoming []vault.IncomingFile
	for _, field := range uploadFieldNames {
		for _, fh := range form.File[field] {
			if fh.Size > maxSize {
				utils.Error(ctx, http.StatusBadRequest, "file size exceeds limit")
				return
			}
			incoming = append(incoming, incomingFromHeader(fh))
		}
	}
	if len(incoming) == 0 {
		utils.Error(ctx, http.StatusBadRequest, "no files uploaded")
		return
	}

	report := f.svc.UploadBatch(ctx.Request.Context(), userID, incoming)

	if report.Complete() {
		ctx.JSON(http.StatusOK, gin.H{
			"message": "upload complete",
			"files":   report.Succeeded,
		})
		return
	}
	if len(report.Succeeded) == 0 {
		utils.Error(ctx, http.StatusInternalServerError, report.Err.Error())
		return
	}
	// Partial success: committed files are valid artifacts, so this is a
	// success response carrying the failure detail for the remainder.
	ctx.JSON(http.StatusOK, gin.H{
		"message":      "upload partially complete",
		"files":        report.Succeeded,
		"failed_index": report.FailedAt,
		"error":        report.Err.Error(),
	})
}

// List returns the caller's records newest-first as a bare array. An
// internal query failure is already degraded to [] by the service.
func (f *FileController) List(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx.JSON(http.StatusOK, f.svc.List(ctx.Request.Context(), userID))
}

// Delete removes a record and its blob. Deleting an id that no longer
// exists answers success, so retries are always safe.
func (f *FileController) Delete(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid file id")
		return
	}

	if err := f.svc.Delete(ctx.Request.Context(), userID, uint(id)); err != nil {
		if errors.Is(err, vault.ErrNotOwner) {
			utils.Error(ctx, http.StatusForbidden, "file belongs to another user")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func incomingFromHeader(fh *multipart.FileHeader) vault.IncomingFile {
	return vault.IncomingFile{
		Name:        utils.SanitizeFilename(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
