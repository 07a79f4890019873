// Package extract holds the record types shared between the deterministic
// parsers, the LLM structurer, and the reconciliation engine. Optional fields
// coming out of probabilistic sources are defaulted exactly once here, so
// downstream code never sees nil-ish values.
package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Item is one extracted product row.
type Item struct {
	Code        string
	Description string
	Qty         decimal.Decimal
	Unit        string
	UnitPrice   *decimal.Decimal
	OrderRef    string // per-line order annotation; empty means document-level
	Source      string // "parser:<name>" | "llm"
}

// DocFields is the document-level metadata a parser or the structurer found.
type DocFields struct {
	SupplierName  string
	SupplierTaxID string
	DocNumber     string
	DocDate       string // ISO-8601
	OrderNumber   string
	Currency      string
	DocKind       string // delivery_note | invoice | purchase_order | unknown
}

// Payload is the structured output persisted per document.
type Payload struct {
	SupplierNIF      string  `json:"supplier_nif"`
	SupplierName     string  `json:"supplier_name"`
	DocumentNumber   string  `json:"document_number"`
	Products         []Item  `json:"products"`
	ExtractionMethod string  `json:"extraction_method"`
	Confidence       float64 `json:"confidence"`
}

// Normalize applies the defaulting rules once at the structuring boundary:
// absent strings become empty, absent units become "UN", and whitespace is
// trimmed. Quantities are already canonical decimals by construction.
func (it Item) Normalize() Item {
	it.Code = strings.TrimSpace(it.Code)
	it.Description = strings.Join(strings.Fields(it.Description), " ")
	it.Unit = strings.ToUpper(strings.TrimSpace(it.Unit))
	if it.Unit == "" {
		it.Unit = "UN"
	}
	it.OrderRef = strings.TrimSpace(it.OrderRef)
	return it
}

// Valid applies the flexible acceptance rule: an item needs a non-empty
// description or a positive quantity; a valid quantity outweighs a missing
// code.
func (it Item) Valid() bool {
	return it.Description != "" || it.Qty.GreaterThan(decimal.Zero)
}

// DedupeKey identifies an item across adjacent pages: same supplier code and
// case/space-insensitive description.
func (it Item) DedupeKey() string {
	return it.Code + "\x00" + strings.ToLower(strings.Join(strings.Fields(it.Description), " "))
}

// Dedupe removes items repeated across page fragments (continued tables),
// keeping first occurrences in order.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		k := it.DedupeKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
