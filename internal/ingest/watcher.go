package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tmaia/inbound-recon/constants"
)

// WatchConfig configures inbox watching.
type WatchConfig struct {
	Roots       []string // directories to watch, recursively
	AllowedExts map[string]struct{}
	InitialScan bool          // emit files already present under the roots
	Debounce    time.Duration // coalesce rapid write bursts per file
	Logger      *slog.Logger
}

// StartWatcher emits the path of every new or rewritten inbox file. Writes
// are debounced per file so a document is picked up once its producer has
// finished writing, not on the first partial flush.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no watch roots provided")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	addTree := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if IsHidden(path) && path != root {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && allowedPath(path, cfg.AllowedExts) {
				select {
				case evCh <- path:
				default:
				}
			}
			return nil
		})
	}
	for _, root := range cfg.Roots {
		if err := addTree(root); err != nil {
			logger.Error("ingest.watch.add_root", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if cerr := w.Close(); cerr != nil {
				logger.Warn("ingest.watch.close", "error", cerr)
			}
		}()

		pending := map[string]struct{}{}
		var timer *time.Timer
		var fire <-chan time.Time

		flush := func() {
			for p := range pending {
				select {
				case evCh <- p:
				default:
					logger.Warn("ingest.watch.overflow", "path", p)
				}
				delete(pending, p)
			}
			fire = nil
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create != 0 {
					// a created directory joins the watch set; errors on
					// plain files are expected and ignored
					_ = w.Add(e.Name)
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if !allowedPath(e.Name, cfg.AllowedExts) || IsHidden(e.Name) {
					continue
				}
				pending[e.Name] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Reset(cfg.Debounce)
				}
				fire = timer.C
			case <-fire:
				flush()
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", werr)
				select {
				case errCh <- werr:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func allowedPath(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
