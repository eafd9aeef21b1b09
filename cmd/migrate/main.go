package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-exam-api/pkg/config"
	"github.com/noah-isme/lms-exam-api/pkg/database"
	"github.com/noah-isme/lms-exam-api/pkg/logger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up, down or force")
	forceVersion := flag.Int("version", -1, "version to force when direction is force")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}

	migrator, err := database.NewMigrator(db, cfg.Database)
	if err != nil {
		logr.Fatal("failed to prepare migrations", zap.Error(err))
	}
	defer migrator.Close() //nolint:errcheck

	switch *direction {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "force":
		if *forceVersion < 0 {
			logr.Fatal("force requires -version")
		}
		err = migrator.Force(*forceVersion)
	default:
		logr.Fatal("unknown migration direction", zap.String("direction", *direction))
	}
	if err != nil {
		logr.Fatal("migration failed", zap.String("direction", *direction), zap.Error(err))
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		logr.Fatal("read migration version", zap.Error(err))
	}
	logr.Info("migrations complete", zap.String("direction", *direction), zap.Uint("version", version), zap.Bool("dirty", dirty))
}
