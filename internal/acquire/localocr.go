package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tmaia/inbound-recon/constants"
)

// minOCRTextLen is the shortest engine output considered usable; anything
// below it is noise.
const minOCRTextLen = 10

// LocalOCRStrategy runs a cascade of local OCR engine binaries, stopping at
// the first one that produces non-empty, sufficiently confident text. PDFs
// are rasterized page by page first.
type LocalOCRStrategy struct {
	engines  []string // binary names tried in order, e.g. tesseract
	langs    string
	pdftoppm string
	dpi      int
	runner   Runner
	logger   *slog.Logger
}

func NewLocalOCRStrategy(engines []string, langs string, logger *slog.Logger) *LocalOCRStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if len(engines) == 0 {
		engines = []string{"tesseract"}
	}
	if langs == "" {
		langs = "por"
	}
	return &LocalOCRStrategy{
		engines:  engines,
		langs:    langs,
		pdftoppm: "pdftoppm",
		dpi:      300,
		runner:   execRunner{},
		logger:   logger,
	}
}

func (s *LocalOCRStrategy) Name() string { return "local-ocr" }

func (s *LocalOCRStrategy) Extract(ctx context.Context, src Source, page int) (PageResult, Outcome, error) {
	imgPath := src.Path
	if src.Format == constants.PDF {
		rendered, cleanup, err := s.renderPage(ctx, src.Path, page)
		if err != nil {
			return PageResult{}, Unavailable, err
		}
		defer cleanup()
		imgPath = rendered
	}

	var lastErr error
	for _, engine := range s.engines {
		text, err := s.runEngine(ctx, engine, imgPath)
		if err != nil {
			s.logger.Debug("acquire.localocr.engine_failed", "engine", engine, "page", page, "error", err)
			lastErr = err
			continue
		}
		text = cleanOCRText(text)
		if len(text) >= minOCRTextLen && plausibleText(text) {
			return PageResult{Text: text, Confidence: heuristicConfidence(text)}, Success, nil
		}
		s.logger.Debug("acquire.localocr.engine_empty", "engine", engine, "page", page, "bytes", len(text))
	}
	if lastErr != nil {
		return PageResult{}, Unavailable, fmt.Errorf("all local engines failed: %w", lastErr)
	}
	return PageResult{}, Empty, nil
}

// renderPage rasterizes one PDF page with pdftoppm.
func (s *LocalOCRStrategy) renderPage(ctx context.Context, path string, page int) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "inbound-pp-*")
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			s.logger.Warn("acquire.localocr.tmp_cleanup", "dir", tmpDir, "error", rerr)
		}
	}

	prefix := filepath.Join(tmpDir, "page")
	pageNo := fmt.Sprintf("%d", page+1)
	_, errb, err := s.runner.Run(ctx, s.pdftoppm,
		"-r", fmt.Sprintf("%d", s.dpi), "-png", "-f", pageNo, "-l", pageNo, path, prefix)
	if err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("pdftoppm: %w: %s", err, errb)
	}
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		cleanup()
		return "", func() {}, fmt.Errorf("pdftoppm rendered no image for page %d", page)
	}
	sort.Strings(matches)
	return matches[0], cleanup, nil
}

func (s *LocalOCRStrategy) runEngine(ctx context.Context, engine, imgPath string) (string, error) {
	out, errb, err := s.runner.Run(ctx, engine, imgPath, "stdout", "-l", s.langs)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", engine, err, errb)
	}
	return string(out), nil
}

var reBoxNoise = regexp.MustCompile(`(?m)^[|_\-=~\s]+$`)

func cleanOCRText(text string) string {
	text = reBoxNoise.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// plausibleText rejects output that is mostly non-letter noise.
func plausibleText(text string) bool {
	var letters, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters++
		}
	}
	return total > 0 && float64(letters)/float64(total) > 0.5
}

// heuristicConfidence estimates OCR quality from character composition when
// the engine reports none of its own.
func heuristicConfidence(text string) float32 {
	var letters, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	conf := float32(letters) / float32(total)
	if conf > 1 {
		conf = 1
	}
	return conf
}
