package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tmaia/inbound-recon/internal/extract"
)

const minDescriptionLen = 5

var (
	// product code: alphanumeric with at least one digit, optional - . / groups
	reProductCode = regexp.MustCompile(`^[A-Z0-9][A-Z0-9\-\./]{3,}$`)
	// Portuguese postal code, e.g. 3810-100
	rePostalCode = regexp.MustCompile(`^\d{4}-\d{3}$`)
	// unit words accepted after a quantity
	reUnitWord = regexp.MustCompile(`^(?i)(UN|UNI|UND|KG|G|M|MT|M2|M3|L|ML|PC|PCS|CX|PAL|RL|SET)$`)
)

// addressVocabulary flags description candidates that are street lines, not
// products, across the document languages.
var addressVocabulary = []string{
	"rua ", "avenida ", "av. ", "lote ", "zona industrial", "apartado",
	"calle ", "poligono", "pol. ind", "carretera",
	"rue ", "boulevard", "cedex",
	"telef", "tel.", "fax", "e-mail", "email", "www.", "http",
	"codigo postal", "c.p.", "nif", "contribuinte", "capital social",
}

// PlausibleCode reports whether a token is shaped like a supplier product
// code: long enough, code-charset, at least one digit, and not a postal code.
func PlausibleCode(token string) bool {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" || rePostalCode.MatchString(t) {
		return false
	}
	if !reProductCode.MatchString(t) {
		return false
	}
	return strings.ContainsAny(t, "0123456789")
}

// LooksLikeAddress reports whether a candidate description line is address or
// letterhead vocabulary rather than a product.
func LooksLikeAddress(line string) bool {
	low := strings.ToLower(line)
	for _, w := range addressVocabulary {
		if strings.Contains(low, w) {
			return true
		}
	}
	return false
}

// PlausibleQty rejects quantity candidates that are really postal codes or
// large identifiers: anything above this ceiling is not a receivable amount.
var qtyCeiling = decimal.NewFromInt(1000000)

func PlausibleQty(q decimal.Decimal) bool {
	return q.GreaterThan(decimal.Zero) && q.LessThan(qtyCeiling)
}

// IsUnitWord reports whether a token is a recognized unit.
func IsUnitWord(token string) bool {
	return reUnitWord.MatchString(strings.TrimSpace(token))
}

// AcceptItem applies flexible validation: a non-empty description or a
// positive quantity is enough, with a valid quantity taking priority over an
// absent code. Items whose description is address-like need a plausible code
// to survive.
func AcceptItem(it extract.Item) bool {
	it = it.Normalize()
	if !it.Valid() {
		return false
	}
	if it.Code == "" && len(it.Description) < minDescriptionLen {
		return false
	}
	if LooksLikeAddress(it.Description) && !PlausibleCode(it.Code) {
		return false
	}
	if !it.Qty.IsZero() && !PlausibleQty(it.Qty) {
		return false
	}
	return true
}
