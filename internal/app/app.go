// Package app wires the repositories, the acquisition cascade, the parser
// registry, the structuring chain and the reconciliation engine into one
// runnable unit shared by the daemon and the CLIs.
package app

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/tmaia/inbound-recon/internal/acquire"
	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/export"
	"github.com/tmaia/inbound-recon/internal/ingest"
	"github.com/tmaia/inbound-recon/internal/parse"
	"github.com/tmaia/inbound-recon/internal/pipeline"
	"github.com/tmaia/inbound-recon/internal/reconcile"
	"github.com/tmaia/inbound-recon/internal/repository"
	"github.com/tmaia/inbound-recon/internal/structurer"
)

// App is the assembled application.
type App struct {
	DB        *gorm.DB
	Docs      repository.DocumentRepository
	Suppliers repository.SupplierRepository
	Orders    repository.OrderRepository
	Mappings  repository.MappingRepository
	Matches   repository.MatchRepository
	MiniCodes repository.MiniCodeRepository
	Processor *pipeline.Processor
	Ingestor  *ingest.FSIngestor
	Export    *export.Service
	Logger    *slog.Logger
}

// New connects the database, migrates, and assembles every component from
// the loaded configuration.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	docs := repository.NewDocumentRepository(db, logger)
	suppliers := repository.NewSupplierRepository(db, logger)
	orders := repository.NewOrderRepository(db, logger)
	mappings := repository.NewMappingRepository(db, logger)
	matches := repository.NewMatchRepository(db, logger)
	miniCodes := repository.NewMiniCodeRepository(db, logger)

	acquirer := acquire.NewAcquirer(acquire.DefaultStrategies(cfg.Acquire, logger), cfg.Acquire, logger)
	registry := parse.NewRegistry(logger)
	engine := reconcile.NewEngine(orders, mappings, matches, cfg.Match, logger)

	var ts pipeline.TextStructurer
	if chain, err := buildStructurer(ctx, cfg.LLM, logger); err != nil {
		logger.Warn("app.structurer.disabled", "error", err)
	} else if chain != nil {
		ts = chain
	}

	proc := pipeline.NewProcessor(docs, suppliers, matches, acquirer, registry, ts, engine, logger)

	return &App{
		DB:        db,
		Docs:      docs,
		Suppliers: suppliers,
		Orders:    orders,
		Mappings:  mappings,
		Matches:   matches,
		MiniCodes: miniCodes,
		Processor: proc,
		Ingestor:  ingest.NewFSIngestor(docs, logger),
		Export:    export.NewService(docs, matches, miniCodes, logger),
		Logger:    logger,
	}, nil
}

// buildStructurer assembles the provider chain from whatever credentials are
// configured. No credentials at all means no LLM fallback.
func buildStructurer(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (*structurer.Structurer, error) {
	var primary, secondary, fallback structurer.Provider

	if cfg.PrimaryKey != "" {
		primary = structurer.NewOpenAIProvider("primary", cfg.BaseURL, cfg.PrimaryKey, cfg.Model, cfg.Timeout, logger)
	}
	if cfg.SecondaryKey != "" {
		secondary = structurer.NewOpenAIProvider("secondary", cfg.BaseURL, cfg.SecondaryKey, cfg.Model, cfg.Timeout, logger)
	}
	if cfg.GeminiKey != "" {
		g, err := structurer.NewGeminiProvider(ctx, cfg.GeminiKey, cfg.GeminiModel, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
		fallback = g
	}

	if primary == nil && fallback == nil {
		return nil, nil
	}
	if primary == nil {
		// Gemini-only deployment: the fallback is the whole chain.
		primary, fallback = fallback, nil
	}
	return structurer.New(primary, secondary, fallback, cfg.TokenBudget, logger), nil
}

// Close releases the database pool.
func (a *App) Close() {
	repository.Close(a.DB, a.Logger)
}
