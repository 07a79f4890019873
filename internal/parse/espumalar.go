package parse

import (
	"regexp"
	"strings"

	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/numfmt"
)

// EspumalarParser handles the Espumalar delivery-note layout: one product per
// line, with the originating order reference printed at the end of each row
// rather than once in the header. Rows look like
//
//	ESP-10234  BLOCO ESPUMA D23 2000x1500  12,000 UN  ENC 2024/118
//
// The per-line order ref matters downstream: one delivery note can draw from
// several purchase orders.
type EspumalarParser struct{}

func NewEspumalarParser() *EspumalarParser { return &EspumalarParser{} }

func (p *EspumalarParser) Name() string      { return "espumalar" }
func (p *EspumalarParser) FormatTag() string { return FormatEspumalar }

var reEspumalarRow = regexp.MustCompile(
	`(?i)^\s*([A-Z]{2,4}-?\d{3,6})\s+(.+?)\s+(\d{1,3}(?:[.,]\d{3})*(?:,\d{1,3})?|\d+(?:[.,]\d+)?)\s+(UN|UNI|KG|M2|M3|MT|M|RL|PC|CX)\b(?:\s+ENC\.?\s*([A-Z0-9/\-]+))?\s*$`)

func (p *EspumalarParser) Parse(text string) Outcome {
	var items []extract.Item
	for _, line := range strings.Split(text, "\n") {
		m := reEspumalarRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// codes, units and order refs normalize to upper case; the
		// description keeps the printed casing
		it := extract.Item{
			Code:        strings.ToUpper(m[1]),
			Description: m[2],
			Qty:         numfmt.NormalizeQty(m[3]),
			Unit:        strings.ToUpper(m[4]),
			OrderRef:    strings.ToUpper(m[5]),
		}
		if AcceptItem(it) {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return Outcome{Kind: ParsedEmpty}
	}
	return Outcome{Kind: Parsed, Items: extract.Dedupe(items)}
}
