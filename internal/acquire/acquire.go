// Package acquire implements the layered text-acquisition cascade: embedded
// text readers, cloud OCR, then local OCR engines, with bounded per-page
// retries. Partial results are always returned; a page that exhausts its
// retries contributes no text but never aborts its siblings.
package acquire

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/common"
)

// PageMarker separates page texts in the combined output.
const PageMarker = "\f"

// Page tracks a single page through the acquisition state machine
// Unattempted -> Attempting(method, try) -> Succeeded | Failed.
type Page struct {
	Index      int
	Text       string
	QRPayloads []string
	Method     string
	Attempts   int
	State      constants.PageState
}

// Result is the combined outcome for a document.
type Result struct {
	Pages      []Page
	Text       string   // page texts in order, delimited by PageMarker
	QRPayloads []string // deduplicated union across pages
	Method     string   // method that produced the most text
	Illegible  bool     // total text below threshold with no QR data
}

// Acquirer runs the strategy cascade over a document's pages.
type Acquirer struct {
	strategies []Strategy
	cfg        common.AcquireConfig
	logger     *slog.Logger
	sleep      func(time.Duration)
}

// NewAcquirer builds an acquirer over an explicit ordered strategy list.
func NewAcquirer(strategies []Strategy, cfg common.AcquireConfig, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetryRounds <= 0 {
		cfg.MaxRetryRounds = 3
	}
	if cfg.MinLegibleLen <= 0 {
		cfg.MinLegibleLen = 15
	}
	return &Acquirer{strategies: strategies, cfg: cfg, logger: logger, sleep: time.Sleep}
}

// Acquire extracts text for every page of src. Pages within a round run
// concurrently; the round is the join point. Only pages still failed after a
// round are retried, up to the configured budget, so succeeded pages are never
// reprocessed and QR payloads are captured exactly once.
func (a *Acquirer) Acquire(ctx context.Context, src Source) (Result, error) {
	n := src.NumPages
	if n <= 0 {
		n = 1
	}
	if a.cfg.MaxPages > 0 && n > a.cfg.MaxPages {
		a.logger.Warn("acquire.pages.truncated", "have", src.NumPages, "max", a.cfg.MaxPages)
		n = a.cfg.MaxPages
	}

	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Index: i, State: constants.PageUnattempted}
	}

	pending := make([]int, n)
	for i := range pending {
		pending[i] = i
	}

	for round := 1; round <= a.cfg.MaxRetryRounds && len(pending) > 0; round++ {
		if round > 1 {
			a.logger.Info("acquire.retry.round", "round", round, "pages", len(pending))
			a.sleep(a.cfg.RetryPause)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, idx := range pending {
			idx := idx
			g.Go(func() error {
				a.attemptPage(gctx, src, &pages[idx])
				return nil
			})
		}
		_ = g.Wait() // page attempts never return errors; failures stay on the page

		var still []int
		for _, idx := range pending {
			if pages[idx].State != constants.PageSucceeded {
				still = append(still, idx)
			}
		}
		pending = still
	}

	for _, idx := range pending {
		pages[idx].State = constants.PageFailed
		a.logger.Warn("acquire.page.exhausted", "page", idx, "attempts", pages[idx].Attempts)
	}

	return a.assemble(pages), nil
}

// attemptPage runs the full strategy cascade once for a page.
func (a *Acquirer) attemptPage(ctx context.Context, src Source, p *Page) {
	p.Attempts++
	for _, s := range a.strategies {
		p.State = constants.PageAttempting
		res, outcome, err := s.Extract(ctx, src, p.Index)
		switch outcome {
		case Success:
			p.Text = res.Text
			p.QRPayloads = res.QRPayloads
			p.Method = s.Name()
			p.State = constants.PageSucceeded
			a.logger.Debug("acquire.page.ok", "page", p.Index, "method", s.Name(), "try", p.Attempts, "bytes", len(res.Text))
			return
		case Empty:
			a.logger.Debug("acquire.page.empty", "page", p.Index, "method", s.Name(), "try", p.Attempts)
		case Unavailable:
			a.logger.Warn("acquire.provider.unavailable", "page", p.Index, "method", s.Name(), "try", p.Attempts, "error", err)
		}
	}
	p.State = constants.PageFailed
}

// assemble joins page texts in order with page markers and unions QR payloads.
func (a *Acquirer) assemble(pages []Page) Result {
	var b strings.Builder
	qrSeen := make(map[string]struct{})
	var qrs []string
	methodBytes := map[string]int{}

	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n" + PageMarker + "\n")
		}
		b.WriteString(p.Text)
		for _, qr := range p.QRPayloads {
			if _, ok := qrSeen[qr]; ok {
				continue
			}
			qrSeen[qr] = struct{}{}
			qrs = append(qrs, qr)
		}
		if p.Method != "" {
			methodBytes[p.Method] += len(p.Text)
		}
	}

	method := ""
	best := -1
	names := make([]string, 0, len(methodBytes))
	for name := range methodBytes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if methodBytes[name] > best {
			best = methodBytes[name]
			method = name
		}
	}

	text := b.String()
	illegible := len(strings.TrimSpace(strings.ReplaceAll(text, PageMarker, ""))) < a.cfg.MinLegibleLen && len(qrs) == 0
	if illegible {
		a.logger.Warn("acquire.document.illegible", "text_len", len(text))
	}

	return Result{
		Pages:      pages,
		Text:       text,
		QRPayloads: qrs,
		Method:     method,
		Illegible:  illegible,
	}
}

// SplitPages splits combined text back into per-page fragments.
func SplitPages(text string) []string {
	parts := strings.Split(text, PageMarker)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
