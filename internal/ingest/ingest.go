// Package ingest brings supplier paperwork into the store: it hashes inbound
// files, deduplicates by content, and registers each new file as a QUEUED
// document for the pipeline.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	DocumentID   uuid.UUID
	Deduplicated bool
	HashHex      string
	Format       string
	ReceivedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the daemon and CLI depend on.
type Ingestor interface {
	// IngestPath registers a single file.
	IngestPath(ctx context.Context, path string) (Result, error)
	// IngestDirectory registers all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error)
}
