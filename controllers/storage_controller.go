package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cppla/filevault/config"
)

// StorageNode describes one blob-store backend to clients. The vault runs a
// single node; the descriptor shape leaves room for more.
type StorageNode struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	BucketName string `json:"bucket_name"`
}

// StorageController serves the static storage topology descriptor.
type StorageController struct {
	nodes []StorageNode
}

// NewStorageController builds the descriptor once from configuration.
func NewStorageController(cfg config.AppConfig) *StorageController {
	return &StorageController{
		nodes: []StorageNode{
			{
				ID:         uuid.NewString(),
				Name:       cfg.StorageNodeName,
				BucketName: cfg.MinioBucket,
			},
		},
	}
}

// Nodes returns the storage node descriptors. No auth: the descriptor
// carries no per-user data.
func (s *StorageController) Nodes(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.nodes)
}
