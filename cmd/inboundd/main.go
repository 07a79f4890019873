// inboundd watches the inbox directories, registers every new supplier
// document and runs the processing pipeline on it.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/app"
	"github.com/tmaia/inbound-recon/internal/async"
	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/ingest"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(2)
	}

	roots := splitRoots(os.Getenv("INBOX_DIRS"))
	if len(roots) == 0 {
		logger.Error("INBOX_DIRS required (comma-separated directories)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(workerCount()),
	)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(drainCtx)
	}()

	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: true,
		Debounce:    2 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("watcher start failed", "error", err)
		os.Exit(1)
	}

	logger.Info("inboundd started", "roots", roots)

	for {
		select {
		case <-ctx.Done():
			logger.Info("inboundd stopping")
			return
		case werr, ok := <-errs:
			if ok {
				logger.Error("watch error", "error", werr)
			}
		case path, ok := <-paths:
			if !ok {
				return
			}
			handle(ctx, a, queue, path)
		}
	}
}

// handle ingests one file and queues it for processing when it is new. A
// reappearing known document is reprocessed without touching received
// quantities.
func handle(ctx context.Context, a *app.App, queue async.Queue, path string) {
	res, err := a.Ingestor.IngestPath(ctx, path)
	if err != nil {
		a.Logger.Warn("ingest failed", "path", path, "error", err)
		return
	}

	firstPass := !res.Deduplicated
	if res.Deduplicated {
		doc, err := a.Docs.Get(ctx, res.DocumentID)
		if err != nil {
			a.Logger.Warn("lookup failed", "document_id", res.DocumentID, "error", err)
			return
		}
		if doc.Status == constants.DocStatusRunning {
			a.Logger.Info("document already running", "document_id", res.DocumentID)
			return
		}
	}

	if err := queue.Enqueue(ctx, async.Job{
		DocumentID:  res.DocumentID,
		FirstPass:   firstPass,
		SubmittedAt: time.Now(),
	}); err != nil {
		a.Logger.Warn("enqueue failed", "document_id", res.DocumentID, "error", err)
	}
}

func workerCount() int {
	if v := os.Getenv("PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 4
}

func splitRoots(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
