package acquire

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/tmaia/inbound-recon/constants"
)

// PDFTextStrategy reads the text layer embedded in a digital PDF. It refuses
// to claim success for header-rich, data-poor extractions: a page whose text
// carries field labels but no actual product rows escalates to OCR.
type PDFTextStrategy struct {
	logger *slog.Logger
}

func NewPDFTextStrategy(logger *slog.Logger) *PDFTextStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFTextStrategy{logger: logger}
}

func (s *PDFTextStrategy) Name() string { return "pdf-text" }

func (s *PDFTextStrategy) Extract(ctx context.Context, src Source, page int) (PageResult, Outcome, error) {
	if src.Format != constants.PDF {
		return PageResult{}, Empty, nil
	}
	if err := ctx.Err(); err != nil {
		return PageResult{}, Unavailable, err
	}

	f, r, err := pdf.Open(src.Path)
	if err != nil {
		return PageResult{}, Unavailable, err
	}
	defer f.Close()

	if page >= r.NumPage() {
		return PageResult{}, Empty, nil
	}
	p := r.Page(page + 1) // reader pages are 1-based
	if p.V.IsNull() {
		return PageResult{}, Empty, nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		s.logger.Debug("acquire.pdftext.read_failed", "page", page, "error", err)
		return PageResult{}, Empty, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return PageResult{}, Empty, nil
	}
	if !HasStructuredRows(text) {
		s.logger.Debug("acquire.pdftext.header_only", "page", page, "bytes", len(text))
		return PageResult{}, Empty, nil
	}
	return PageResult{Text: text, Confidence: 1.0}, Success, nil
}

var (
	// a plausible supplier code: alphanumeric token with at least 4 chars
	reCodeToken = regexp.MustCompile(`\b[A-Z0-9][A-Z0-9\-\./]{3,}\b`)
	// a quantity followed by a unit word on the same line
	reQtyUnit = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(UN|UNI|KG|G|M|MT|M2|M3|L|ML|PC|PCS|CX|PAL|RL)\b`)
)

// HasStructuredRows is the litmus test separating structural field labels from
// actual tabular data: at least one line must carry a code token together with
// a quantity+unit pair.
func HasStructuredRows(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if reCodeToken.MatchString(strings.ToUpper(line)) && reQtyUnit.MatchString(line) {
			return true
		}
	}
	return false
}
