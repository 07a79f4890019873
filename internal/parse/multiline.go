package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/numfmt"
)

// Strategy 3 of the generic parser: some suppliers print each field of a row
// on its own line. A small state buffer accumulates code, description lines
// and quantity; the buffer flushes into an item when a quantity line closes
// it or a new code opens the next row.

var reQtyLine = regexp.MustCompile(`(?i)^\s*(\d{1,3}(?:[.,]\d{3})*(?:,\d{1,3})?|\d+(?:[.,]\d+)?)\s*(UN|UNI|KG|G|M|MT|M2|M3|L|ML|PC|PCS|CX|PAL|RL)?\s*$`)

type lineBuffer struct {
	code  string
	desc  []string
	qty   decimal.Decimal
	unit  string
	armed bool
}

func (b *lineBuffer) reset() { *b = lineBuffer{} }

func (b *lineBuffer) flush(out *[]extract.Item) {
	if !b.armed {
		b.reset()
		return
	}
	it := extract.Item{
		Code:        b.code,
		Description: strings.Join(b.desc, " "),
		Qty:         b.qty,
		Unit:        b.unit,
	}
	if AcceptItem(it) {
		*out = append(*out, it)
	}
	b.reset()
}

func parseMultiLine(text string) []extract.Item {
	var (
		items []extract.Item
		buf   lineBuffer
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			buf.flush(&items)
			continue
		}
		if m := reQtyLine.FindStringSubmatch(line); m != nil && buf.code != "" {
			buf.qty = numfmt.NormalizeQty(m[1])
			buf.unit = m[2]
			buf.armed = true
			buf.flush(&items)
			continue
		}
		if fields := strings.Fields(line); len(fields) == 1 && PlausibleCode(fields[0]) {
			// a fresh code closes any incomplete row
			buf.flush(&items)
			buf.code = fields[0]
			continue
		}
		if buf.code != "" && !LooksLikeAddress(line) {
			buf.desc = append(buf.desc, line)
		}
	}
	buf.flush(&items)
	return items
}
