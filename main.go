package main

import (
	"context"
	"time"

	"github.com/cppla/filevault/config"
	"github.com/cppla/filevault/models"
	"github.com/cppla/filevault/repository"
	"github.com/cppla/filevault/routes"
	"github.com/cppla/filevault/storage"
	"github.com/cppla/filevault/utils"
	"github.com/cppla/filevault/vault"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.FileRecord{})

	blobs, err := storage.NewMinioStore(cfg)
	if err != nil {
		utils.Sugar.Fatalf("blob store init failed: %v", err)
	}

	svc := vault.NewService(blobs, repository.NewFiles(db), storage.NewKeyGenerator(), utils.Sugar)

	// Background sweep for the residue the sagas can leave behind
	svc.StartReconciler(context.Background(), vault.ReconcileOptions{
		Interval:      time.Duration(cfg.ReconcileIntervalMinutes) * time.Minute,
		OrphanGrace:   time.Duration(cfg.ReconcileOrphanGraceMinutes) * time.Minute,
		DeleteOrphans: cfg.ReconcileDeleteOrphans,
	})

	r := routes.SetupRouter(db, svc)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
