package parse

import (
	"regexp"
	"strings"

	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/numfmt"
)

// BlocotexParser handles the Blocotex layout, which prints each product as a
// three-line block:
//
//	BTX.4471
//	TECIDO JACQUARD 280CM CINZA
//	150,000 MT
//
// Blank lines separate blocks. A single shared order reference, when present,
// appears once in the header as "V/ENCOMENDA <ref>" and applies to every row.
type BlocotexParser struct{}

func NewBlocotexParser() *BlocotexParser { return &BlocotexParser{} }

func (p *BlocotexParser) Name() string      { return "blocotex" }
func (p *BlocotexParser) FormatTag() string { return FormatBlocotex }

var (
	reBlocotexCode  = regexp.MustCompile(`^BTX[\.\-]?\d{3,6}$`)
	reBlocotexQty   = regexp.MustCompile(`^(\d{1,3}(?:[.,]\d{3})*(?:,\d{1,3})?|\d+(?:[.,]\d+)?)\s*(UN|UNI|KG|M2|M3|MT|M|RL|PC|CX)?$`)
	reBlocotexOrder = regexp.MustCompile(`(?i)V/\s*ENCOMENDA\s*[:\.]?\s*([A-Z0-9/\-]+)`)
)

func (p *BlocotexParser) Parse(text string) Outcome {
	orderRef := ""
	if m := reBlocotexOrder.FindStringSubmatch(text); m != nil {
		orderRef = strings.ToUpper(m[1])
	}

	var (
		items []extract.Item
		code  string
		desc  []string
	)
	flush := func() { code = ""; desc = nil }
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		up := strings.ToUpper(line)
		if reBlocotexCode.MatchString(up) {
			code = up
			desc = nil
			continue
		}
		if code == "" {
			continue
		}
		if m := reBlocotexQty.FindStringSubmatch(up); m != nil {
			it := extract.Item{
				Code:        code,
				Description: strings.Join(desc, " "),
				Qty:         numfmt.NormalizeQty(m[1]),
				Unit:        m[2],
				OrderRef:    orderRef,
			}
			if AcceptItem(it) {
				items = append(items, it)
			}
			flush()
			continue
		}
		if !LooksLikeAddress(line) {
			desc = append(desc, line)
		}
	}
	if len(items) == 0 {
		return Outcome{Kind: ParsedEmpty}
	}
	return Outcome{Kind: Parsed, Items: extract.Dedupe(items)}
}
