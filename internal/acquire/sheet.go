package acquire

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tmaia/inbound-recon/constants"
)

// SheetStrategy handles spreadsheet and delimited-text input directly, with
// no OCR involved. Rows are re-emitted as tab-delimited lines so the table
// parsing strategy downstream sees the document's native tabular structure.
type SheetStrategy struct {
	logger *slog.Logger
}

func NewSheetStrategy(logger *slog.Logger) *SheetStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetStrategy{logger: logger}
}

func (s *SheetStrategy) Name() string { return "sheet" }

func (s *SheetStrategy) Extract(ctx context.Context, src Source, page int) (PageResult, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return PageResult{}, Unavailable, err
	}
	switch src.Format {
	case constants.SPREADSHEET:
		if page > 0 {
			return PageResult{}, Empty, nil
		}
		text, err := s.readXLSX(src.Path)
		if err != nil {
			return PageResult{}, Unavailable, err
		}
		if strings.TrimSpace(text) == "" {
			return PageResult{}, Empty, nil
		}
		return PageResult{Text: text, Confidence: 1.0}, Success, nil
	case constants.TEXT:
		if page > 0 {
			return PageResult{}, Empty, nil
		}
		text, err := s.readDelimited(src.Path)
		if err != nil {
			return PageResult{}, Unavailable, err
		}
		if strings.TrimSpace(text) == "" {
			return PageResult{}, Empty, nil
		}
		return PageResult{Text: text, Confidence: 1.0}, Success, nil
	}
	return PageResult{}, Empty, nil
}

func (s *SheetStrategy) readXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("acquire.sheet.close", "error", cerr)
		}
	}()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			s.logger.Warn("acquire.sheet.rows", "sheet", sheet, "error", err)
			continue
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func (s *SheetStrategy) readDelimited(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(raw)

	// CSV input is rewritten tab-delimited; plain text passes through.
	if strings.Contains(content, ",") && strings.HasSuffix(strings.ToLower(path), ".csv") {
		r := csv.NewReader(strings.NewReader(content))
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		if err != nil {
			// fall back to the raw content rather than failing the page
			return content, nil
		}
		var b strings.Builder
		for _, rec := range records {
			b.WriteString(strings.Join(rec, "\t"))
			b.WriteString("\n")
		}
		return b.String(), nil
	}
	return content, nil
}
