package numfmt

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCommaRule(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "three digits after comma are thousands", token: "190,000", want: "190000"},
		{name: "thousands with leading digit", token: "1,880", want: "1880"},
		{name: "one digit after comma is decimal", token: "2,5", want: "2.5"},
		{name: "two digits after comma are decimal", token: "34,00", want: "34"},
		{name: "spec example", token: "125,000", want: "125000"},
		{name: "ambiguous three zeros still thousands", token: "1,000", want: "1000"},
		{name: "pt mixed separators", token: "1.711,220", want: "1711.22"},
		{name: "en mixed separators keeps dot decimal", token: "1,711.220", want: "1711.22"},
		{name: "plain integer", token: "48", want: "48"},
		{name: "single dot is en decimal", token: "3.75", want: "3.75"},
		{name: "multiple dots are pt thousands", token: "1.234.567", want: "1234567"},
		{name: "embedded spaces", token: "1 711,22", want: "1711.22"},
		{name: "trailing comma dropped", token: "12,", want: "12"},
		{name: "multiple commas with trailing thousands", token: "1,234,000", want: "1234000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.token)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"Normalize(%q) = %s, want %s", tt.token, got, tt.want)
		})
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "   ", "abc", "12x4", "--3"} {
		if _, err := Normalize(token); err == nil {
			t.Errorf("Normalize(%q) expected error, got none", token)
		}
	}
}

func TestNormalizeQtyDegradesToZero(t *testing.T) {
	assert.True(t, NormalizeQty("not-a-number").IsZero())
	assert.True(t, NormalizeQty("").IsZero())
	assert.True(t, NormalizeQty("2,5").Equal(decimal.RequireFromString("2.5")))
}
