package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ejfeldman7/lakebase-image-serving/config"
	"github.com/ejfeldman7/lakebase-image-serving/controllers"
	"github.com/ejfeldman7/lakebase-image-serving/db"
	"github.com/ejfeldman7/lakebase-image-serving/routes"
	"github.com/ejfeldman7/lakebase-image-serving/services"
	"github.com/ejfeldman7/lakebase-image-serving/storage"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		fatalWithSetup(cfg, "configuration error", err)
	}

	workspace := services.NewWorkspaceService(cfg)

	pool, err := db.NewPool(cfg, workspace)
	if err != nil {
		fatalWithSetup(cfg, "database connection error", err)
	}
	defer pool.Close()

	predictions := services.NewPredictionService(pool, cfg)
	if err := predictions.EnsureTable(context.Background()); err != nil {
		fatalWithSetup(cfg, "predictions table not reachable", err)
	}

	var store storage.FileStore
	switch cfg.StorageBackend {
	case "s3":
		store, err = storage.NewS3Store(context.Background(), cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
		if err != nil {
			log.Fatalf("S3 storage init: %v", err)
		}
	default:
		store = storage.NewVolumeStore(workspace.Host(), workspace)
	}
	images := services.NewImageService(store, cfg)

	r := routes.SetupRouter(
		controllers.NewGalleryController(predictions),
		controllers.NewImageController(images),
	)

	log.WithFields(log.Fields{
		"port":    cfg.Port,
		"schema":  predictions.Schema(),
		"table":   cfg.Table,
		"storage": cfg.StorageBackend,
	}).Info("starting image serving app")

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func fatalWithSetup(cfg *config.Config, msg string, err error) {
	fmt.Fprintln(os.Stderr, cfg.SetupInstructions())
	log.Fatalf("%s: %v", msg, err)
}
