// Package parse turns acquired text into typed product records. A router
// classifies the document by layout signature, a ranked registry dispatches
// to format-specific parsers, and a generic heuristic parser covers the rest.
// The registry's contract with the LLM structurer is strict: any parser that
// yields at least one product wins; the LLM only ever sees documents the
// parsers produced nothing for.
package parse

import (
	"strings"
)

// Format tags form a closed set; unknown layouts fall back to FormatGeneric.
const (
	FormatEspumalar = "espumalar"
	FormatBlocotex  = "blocotex"
	FormatGeneric   = "generic"
)

// signatures pairs a format tag with the distinctive header tokens of its
// layout. Order matters: the first matching signature wins. Matching is
// case-insensitive over normalized text.
var signatures = []struct {
	tag  string
	keys []string
}{
	{FormatEspumalar, []string{"espumalar"}},
	{FormatBlocotex, []string{"blocotex"}},
}

// Router classifies a document by scanning for supplier/layout signatures.
type Router struct{}

func NewRouter() *Router { return &Router{} }

// Route returns the format tag for the given text, or FormatGeneric when no
// signature matches.
func (r *Router) Route(text string) string {
	low := strings.ToLower(text)
	for _, sig := range signatures {
		for _, k := range sig.keys {
			if strings.Contains(low, k) {
				return sig.tag
			}
		}
	}
	return FormatGeneric
}
