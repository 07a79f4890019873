package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tmaia/inbound-recon/internal/models"
	"github.com/tmaia/inbound-recon/internal/repository"
)

// ImportStats summarizes a mini-code import run.
type ImportStats struct {
	Rows     int
	Upserted int
	Skipped  int
}

// ImportMiniCodesXLSX loads the warehouse mini-code workbook. The sheet
// carries a descriptive banner on row 1 and the real headers on row 2
// (Familia, Mini Codigo, Referencia, Designacao, Identificador, Tipo), so
// data starts on row 3. Rows without a mini code are skipped.
func ImportMiniCodesXLSX(ctx context.Context, repo repository.MiniCodeRepository, path string, logger *slog.Logger) (ImportStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stats ImportStats

	f, err := excelize.OpenFile(path)
	if err != nil {
		return stats, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("export.minicodes.close", "error", cerr)
		}
	}()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return stats, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var batch []models.MiniCode
	for i, row := range rows {
		if i < 2 {
			continue
		}
		stats.Rows++

		code := cellAt(row, 1)
		if code == "" {
			stats.Skipped++
			continue
		}
		batch = append(batch, models.MiniCode{
			Family:      cellAt(row, 0),
			Code:        code,
			Reference:   cellAt(row, 2),
			Designation: cellAt(row, 3),
			Identifier:  cellAt(row, 4),
			Kind:        cellAt(row, 5),
		})
	}

	if len(batch) > 0 {
		n, err := repo.BulkUpsert(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("upsert mini codes: %w", err)
		}
		stats.Upserted = n
	}

	logger.Info("export.minicodes.imported",
		"path", path, "rows", stats.Rows, "upserted", stats.Upserted, "skipped", stats.Skipped)
	return stats, nil
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
