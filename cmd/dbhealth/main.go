// dbhealth connects to the configured database, pings it and reports a few
// row counts. Exit code 0 means healthy.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/models"
	"github.com/tmaia/inbound-recon/internal/repository"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_DSN env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening DB", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	if err := repository.HealthCheck(ctx, db, time.Second, logger); err != nil {
		logger.Error("DB health: FAIL", "error", err)
		os.Exit(1)
	}
	logger.Info("DB health: OK")

	var docs, queued, exceptions int64
	db.WithContext(ctx).Model(&models.Document{}).Count(&docs)
	db.WithContext(ctx).Model(&models.Document{}).Where("status = ?", constants.DocStatusQueued).Count(&queued)
	db.WithContext(ctx).Model(&models.ExceptionTask{}).Where("resolved = ?", false).Count(&exceptions)

	logger.Info("store summary", "documents", docs, "queued", queued, "open_exceptions", exceptions)
}
