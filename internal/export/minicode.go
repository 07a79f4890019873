package export

import (
	"fmt"
	"regexp"
	"strings"
)

// Mini codes are the short internal identifiers shown on warehouse exports.
// A composed supplier code embeds its dimensions; a modular one carries a
// density grade and gets the dimensions appended.

var (
	reDims    = regexp.MustCompile(`(\d{2,5})\s*[xX*]\s*(\d{2,5})\s*[xX*]\s*(\d{2,5})`)
	reDensity = regexp.MustCompile(`\bD\s?(\d{2,3})\b`)
)

// Dimensions are the block measurements in millimeters, zero when unknown.
type Dimensions struct {
	Length int
	Width  int
	Height int
}

// ParseDimensions pulls the first LxWxH group out of a code or description.
func ParseDimensions(text string) (Dimensions, bool) {
	m := reDims.FindStringSubmatch(text)
	if m == nil {
		return Dimensions{}, false
	}
	return Dimensions{Length: atoiSafe(m[1]), Width: atoiSafe(m[2]), Height: atoiSafe(m[3])}, true
}

// GenerateMiniCode derives the short code for a line from its supplier code
// and description. Modular material is "D<density>-WxLxH"; composed codes
// reduce to their embedded dimensions; anything else keeps the supplier code.
func GenerateMiniCode(supplierCode, description string) string {
	density := ""
	if m := reDensity.FindStringSubmatch(supplierCode); m != nil {
		density = m[1]
	} else if m := reDensity.FindStringSubmatch(description); m != nil {
		density = m[1]
	}

	dims, ok := ParseDimensions(supplierCode)
	if !ok {
		dims, ok = ParseDimensions(description)
	}
	if !ok {
		return strings.TrimSpace(supplierCode)
	}

	if density != "" {
		return fmt.Sprintf("D%s-%dx%dx%d", density, dims.Width, dims.Length, dims.Height)
	}
	return fmt.Sprintf("%dx%dx%d", dims.Length, dims.Width, dims.Height)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
