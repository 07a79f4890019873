// Package export renders reconciliation outcomes to XLSX workbooks and
// imports the internal mini-code table from the warehouse spreadsheet.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/tmaia/inbound-recon/internal/models"
	"github.com/tmaia/inbound-recon/internal/repository"
)

// Service produces XLSX bytes over the document, match and mini-code stores.
type Service struct {
	docs      repository.DocumentRepository
	matches   repository.MatchRepository
	miniCodes repository.MiniCodeRepository
	logger    *slog.Logger
}

func NewService(docs repository.DocumentRepository, matches repository.MatchRepository, miniCodes repository.MiniCodeRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, matches: matches, miniCodes: miniCodes, logger: logger}
}

const (
	linesSheet      = "Rececao"
	exceptionsSheet = "Excecoes"
)

// ExportDocumentXLSX returns a workbook with one sheet of reconciled line
// items and one of open exceptions for the given document.
func (s *Service) ExportDocumentXLSX(ctx context.Context, docID uuid.UUID) ([]byte, error) {
	start := time.Now()

	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	f := excelize.NewFile()
	if err := s.writeLines(ctx, f, doc.Lines, doc.PONumber); err != nil {
		return nil, err
	}
	if err := s.writeExceptions(ctx, f, docID); err != nil {
		return nil, err
	}
	s.writeSummary(ctx, f, docID)

	// drop the default sheet, keep ours active
	_ = f.DeleteSheet("Sheet1")
	if idx, _ := f.GetSheetIndex(linesSheet); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"document_id", docID.String(),
		"lines", len(doc.Lines),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeLines(ctx context.Context, f *excelize.File, lines []models.LineItem, docNumber string) error {
	if _, err := f.NewSheet(linesSheet); err != nil {
		return err
	}

	headers := []string{
		"Codigo Fornecedor",
		"Mini Codigo",
		"SKU Interno",
		"Designacao",
		"Quantidade",
		"Unidade",
		"Encomenda",
		"Origem",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(linesSheet, cell, h)
	}

	row := 2
	for _, l := range lines {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(linesSheet, cell, v)
		}

		write(1, l.SupplierCode)
		write(2, s.miniCodeFor(ctx, l.SupplierCode, l.Description))
		write(3, l.InternalSKU)
		write(4, truncate(l.Description, 140))
		write(5, l.Qty.String())
		write(6, l.Unit)
		orderRef := l.OrderRef
		if orderRef == "" {
			orderRef = docNumber
		}
		write(7, orderRef)
		write(8, l.Source)
		row++
	}

	_ = f.SetColWidth(linesSheet, "A", "A", 20)
	_ = f.SetColWidth(linesSheet, "B", "B", 20)
	_ = f.SetColWidth(linesSheet, "C", "C", 20)
	_ = f.SetColWidth(linesSheet, "D", "D", 48)
	_ = f.SetColWidth(linesSheet, "E", "F", 12)
	_ = f.SetColWidth(linesSheet, "G", "H", 16)
	return nil
}

// miniCodeFor resolves the internal short code for a line: the imported table
// wins, derivation from dimensions covers everything else.
func (s *Service) miniCodeFor(ctx context.Context, supplierCode, description string) string {
	if s.miniCodes != nil && supplierCode != "" {
		if mc, err := s.miniCodes.FindByIdentifier(ctx, supplierCode); err == nil {
			return mc.Code
		}
	}
	return GenerateMiniCode(supplierCode, description)
}

func (s *Service) writeExceptions(ctx context.Context, f *excelize.File, docID uuid.UUID) error {
	tasks, err := s.matches.ListOpenExceptions(ctx, docID)
	if err != nil {
		return fmt.Errorf("load exceptions: %w", err)
	}

	if _, err := f.NewSheet(exceptionsSheet); err != nil {
		return err
	}
	headers := []string{"Tipo", "Linha", "Detalhe", "Criada"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exceptionsSheet, cell, h)
	}

	row := 2
	for _, t := range tasks {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exceptionsSheet, cell, v)
		}
		write(1, string(t.Kind))
		write(2, t.LineRef)
		write(3, truncate(t.Detail, 200))
		write(4, t.CreatedAt.Format("2006-01-02 15:04"))
		row++
	}

	_ = f.SetColWidth(exceptionsSheet, "A", "A", 22)
	_ = f.SetColWidth(exceptionsSheet, "B", "B", 14)
	_ = f.SetColWidth(exceptionsSheet, "C", "C", 64)
	_ = f.SetColWidth(exceptionsSheet, "D", "D", 18)
	return nil
}

// writeSummary annotates the lines sheet header area with the match outcome.
func (s *Service) writeSummary(ctx context.Context, f *excelize.File, docID uuid.UUID) {
	res, err := s.matches.GetResult(ctx, docID)
	if err != nil {
		return
	}
	_ = f.SetCellValue(linesSheet, "J1", "Estado")
	_ = f.SetCellValue(linesSheet, "K1", string(res.Status))
	if len(res.Summary) > 0 {
		var compact map[string]any
		if json.Unmarshal(res.Summary, &compact) == nil {
			_ = f.SetCellValue(linesSheet, "J2", "Resumo")
			_ = f.SetCellValue(linesSheet, "K2", truncate(string(res.Summary), 200))
		}
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// cut on a rune boundary so accented text never splits mid-sequence
	cut := n - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
