// Package numfmt is the single place where locale-ambiguous numeric tokens
// from supplier documents are turned into canonical decimals. Parsers and the
// LLM boundary must call into it instead of re-implementing the comma rule;
// duplicated copies of this logic caused real defects in the past.
package numfmt

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// quantum keeps quantities at 3 decimal places, matching the precision
// suppliers print on delivery notes.
var quantum = int32(3)

// Normalize converts a numeric token that may use a comma as either a
// thousands separator or a decimal point into a canonical decimal.
//
// The comma rule counts digits after the comma:
//   - exactly 3 digits: the comma is a thousands separator ("190,000" -> 190000)
//   - 1 or 2 digits: the comma is a decimal point ("2,5" -> 2.5, "34,00" -> 34)
//
// Known ambiguity, intentionally not resolved by guessing: "1,000" cannot be
// distinguished between one-with-decimals and one thousand. Three trailing
// digits are always treated as thousands. Do not change this silently.
//
// Tokens carrying both separators follow the Portuguese convention: the dot
// is the thousands separator and the comma is the decimal point
// ("1.711,220" -> 1711.220).
func Normalize(token string) (decimal.Decimal, error) {
	s := strings.TrimSpace(token)
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty numeric token")
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// PT format: 1.711,220 -> 1711.220
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		idx := strings.LastIndex(s, ",")
		digitsAfter := len(s) - idx - 1
		if digitsAfter == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else if digitsAfter > 0 {
			head := strings.ReplaceAll(s[:idx], ",", "")
			s = head + "." + s[idx+1:]
		} else {
			s = strings.TrimSuffix(s, ",")
		}
	case hasDot:
		// Only dots: several of them are thousands separators; a single one
		// is an English decimal point and stays.
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric token %q: %w", token, err)
	}
	return d.Round(quantum), nil
}

// NormalizeQty is the lenient variant used at extraction boundaries, where a
// malformed quantity must degrade to zero rather than propagate a fault.
func NormalizeQty(token string) decimal.Decimal {
	d, err := Normalize(token)
	if err != nil {
		return decimal.Zero
	}
	return d
}
