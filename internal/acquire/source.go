package acquire

import (
	"log/slog"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/common"
)

// NewSource inspects a file and builds its acquisition Source, counting PDF
// pages from the document itself. Non-PDF inputs are single-page.
func NewSource(path string) (Source, error) {
	format := constants.MapExtToFormat(filepath.Ext(path))
	src := Source{Path: path, Format: format, NumPages: 1}

	if format == constants.PDF {
		f, r, err := pdf.Open(path)
		if err != nil {
			// An unreadable PDF still enters the cascade: cloud and local OCR
			// may cope with what the embedded reader cannot.
			return src, nil
		}
		defer f.Close()
		if n := r.NumPage(); n > 0 {
			src.NumPages = n
		}
	}
	return src, nil
}

// DefaultStrategies assembles the production cascade in priority order:
// direct sheet reading, embedded PDF text, cloud OCR, local OCR engines.
func DefaultStrategies(cfg common.AcquireConfig, logger *slog.Logger) []Strategy {
	return []Strategy{
		NewSheetStrategy(logger),
		NewPDFTextStrategy(logger),
		NewCloudOCRStrategy(cfg.CloudOCRURL, cfg.CloudOCRKey, cfg.OCRLangs, cfg.CloudOCRTimeout, logger),
		NewLocalOCRStrategy(cfg.OCREngines, cfg.OCRLangs, logger),
	}
}
