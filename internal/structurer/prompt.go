package structurer

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/tmaia/inbound-recon/internal/acquire"
)

// headerScanLines bounds how deep into a page the repeated-header filter
// looks. Product tables never start on the very first lines of a follow-on
// page; letterheads do.
const headerScanLines = 8

func buildSystemPrompt() string {
	parts := []string{
		"You are a parser for Portuguese supplier paperwork (guias de remessa, faturas, notas de encomenda).",
		"Return ONLY JSON that matches the JSON Schema provided in the user message.",
		"Extract every product line: supplier article code, description, quantity, unit, and the order reference printed on or near the line if any.",
		"Quantities use Portuguese formatting: a comma followed by exactly three digits is a thousands separator, one or two digits after the comma are decimals.",
		"Emit 'quantity' as a plain decimal string with a dot separator, e.g. \"12.5\" or \"1000\".",
		"Ignore addresses, tax summaries, transport details and totals.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(text string) string {
	schema, _ := json.MarshalIndent(BuildProductsJSONSchema(), "", "  ")
	var b strings.Builder
	b.WriteString("Document text:\n")
	b.WriteString(text)
	b.WriteString("\n\nJSON Schema:\n")
	b.Write(schema)
	b.WriteString("\n\nReturn ONLY JSON that matches the schema.")
	return b.String()
}

// PrefilterText prepares acquired text for submission: letterhead lines that
// repeat at the top of multiple pages are dropped after their first
// occurrence, and the result is truncated to the character budget. Page
// markers survive so fragments can still be split out.
func PrefilterText(text string, budget int) string {
	pages := acquire.SplitPages(text)
	if len(pages) > 1 {
		counts := make(map[string]int)
		for _, page := range pages {
			for i, line := range strings.Split(page, "\n") {
				if i >= headerScanLines {
					break
				}
				if t := strings.TrimSpace(line); t != "" {
					counts[t]++
				}
			}
		}
		seen := make(map[string]bool)
		for pi, page := range pages {
			lines := strings.Split(page, "\n")
			out := lines[:0]
			for i, line := range lines {
				t := strings.TrimSpace(line)
				if i < headerScanLines && t != "" && counts[t] > 1 {
					if seen[t] {
						continue
					}
					seen[t] = true
				}
				out = append(out, line)
			}
			pages[pi] = strings.Join(out, "\n")
		}
		text = strings.Join(pages, "\n"+acquire.PageMarker+"\n")
	}

	if budget > 0 && len(text) > budget {
		cut := budget
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
