// Package repository is the gorm-backed persistence layer. Each aggregate
// gets a small interface so the engine and pipeline can run against fakes in
// tests.
package repository

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/models"
)

// Open connects to Postgres, applies pool limits and migrates the schema.
func Open(ctx context.Context, cfg common.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	log.Info("db.connect", "dsn_set", cfg.DSN != "")

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Error("db.connect.failed", "error", err)
		return nil, common.NewAppError("DB_CONNECT", "failed to connect to database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, common.NewAppError("DB_CONNECT", "failed to access connection pool", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := HealthCheck(ctx, db, cfg.DialTimeout, log); err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		log.Error("db.migrate.failed", "error", err)
		return nil, common.NewAppError("DB_MIGRATE", "failed to migrate schema", err)
	}

	log.Info("db.connect.ok")
	return db, nil
}

// Close shuts the pool down gracefully.
func Close(db *gorm.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("db.close.failed", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("db.close.failed", "error", err)
		return
	}
	log.Info("db.close.ok")
}

// HealthCheck pings the database, catching DSN and network issues early.
func HealthCheck(ctx context.Context, db *gorm.DB, timeout time.Duration, log *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return common.NewAppError("DB_HEALTH", "failed to access connection pool", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("db.ping.failed", "error", err)
		return common.NewAppError("DB_HEALTH", "database ping failed", err)
	}
	return nil
}
