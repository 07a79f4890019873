// import-minicodes loads the warehouse mini-code workbook into the store.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/tmaia/inbound-recon/internal/app"
	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/export"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "import-minicodes <workbook.xlsx>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	stats, err := export.ImportMiniCodesXLSX(ctx, a.MiniCodes, path, logger)
	if err != nil {
		logger.Error("import failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("import OK", "rows", stats.Rows, "upserted", stats.Upserted, "skipped", stats.Skipped)
}
