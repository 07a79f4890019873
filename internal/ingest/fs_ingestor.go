package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/models"
	"github.com/tmaia/inbound-recon/internal/repository"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	Docs        repository.DocumentRepository
	AllowedExts map[string]struct{} // lowercased sans '.'; nil uses the default set
	Logger      *slog.Logger
}

func NewFSIngestor(docs repository.DocumentRepository, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{Docs: docs, Logger: logger}
}

func (i *FSIngestor) allowed(ext string) bool {
	ext = constants.NormalizeExt(ext)
	if i.AllowedExts != nil {
		_, ok := i.AllowedExts[ext]
		return ok
	}
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IngestPath hashes one file and registers it unless the same content was
// seen before. The document kind starts as delivery_note; the pipeline
// reclassifies it from the text.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (Result, error) {
	var out Result

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, common.NewAppError("INGEST_PATH", "resolving absolute path", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !i.allowed(ext) {
		return out, common.NewAppError("INGEST_EXT", "unsupported or missing extension "+ext, nil)
	}

	f, err := os.Open(abs)
	if err != nil {
		return out, common.NewAppError("INGEST_OPEN", "opening "+abs, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			i.Logger.Warn("ingest.file.close", "path", abs, "error", cerr)
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, common.NewAppError("INGEST_HASH", "hashing "+abs, err)
	}
	sum := h.Sum(nil)
	now := time.Now().UTC()

	doc, created, err := i.Docs.CreateIfNew(ctx, &models.Document{
		DocType:     constants.DocTypeDeliveryNote,
		SourcePath:  abs,
		ContentHash: sum,
		Format:      constants.MapExtToFormat(ext),
		Status:      constants.DocStatusQueued,
		ReceivedAt:  now,
	})
	if err != nil {
		return out, err
	}

	out = Result{
		SourcePath:   doc.SourcePath,
		DocumentID:   doc.ID,
		Deduplicated: !created,
		HashHex:      hex.EncodeToString(sum),
		Format:       doc.Format,
		ReceivedAt:   doc.ReceivedAt,
	}
	i.Logger.Info("ingest.file", "path", abs, "document_id", doc.ID, "dedup", !created)
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each matching file. Per-file failures are recorded, not
// fatal.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !i.allowed(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, Result{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, common.NewAppError("INGEST_WALK", "walking "+root, err)
	}
	i.Logger.Info("ingest.directory.done",
		"root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "dedup", stats.Deduplicated, "failed", stats.Failed)
	return results, stats, nil
}

// IsHidden reports whether a file or directory name starts with '.'.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
