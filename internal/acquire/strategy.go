package acquire

import "context"

// Outcome classifies one strategy attempt. The cascade is an ordered strategy
// list evaluated under a uniform attempt-classify-continue protocol, so new
// providers slot in without touching call sites.
type Outcome int

const (
	// Success: usable text was produced; the cascade stops for this page.
	Success Outcome = iota
	// Empty: the strategy ran but produced nothing usable (e.g. a header-rich,
	// data-poor embedded-text read); the cascade continues.
	Empty
	// Unavailable: the strategy could not run (timeout, non-2xx, missing
	// binary); treated the same as Empty for cascade purposes but logged as a
	// provider failure.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Empty:
		return "empty"
	default:
		return "unavailable"
	}
}

// Source describes the document under extraction.
type Source struct {
	Path     string
	Format   string // constants.PDF | IMAGE | SPREADSHEET | TEXT
	NumPages int
}

// PageResult is what a strategy yields for a single page.
type PageResult struct {
	Text       string
	QRPayloads []string
	Confidence float32
}

// Strategy is one rung of the acquisition cascade.
type Strategy interface {
	Name() string
	// Extract attempts to pull text (and any QR payloads) for the given
	// zero-based page of src.
	Extract(ctx context.Context, src Source, page int) (PageResult, Outcome, error)
}
