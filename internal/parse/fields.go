package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/extract"
)

// Document-level metadata extraction shared by every parser. Field labels on
// supplier paperwork vary by language and by OCR quality, so key matching is
// fuzzy: a label resolves to a logical field when its edit distance to any
// synonym stays within the similarity threshold.

var (
	reDocNumber = regexp.MustCompile(`(?i)\b(?:GR|GT|FT|FAT|FA|FC|IN|INV|DN|N)\s*[\- ]?\d{1,4}/\d{4,7}\b|\b[A-Z]{1,4}\d?/\d{6,}\b`)
	reDocDate   = regexp.MustCompile(`\b(\d{2})[/\-](\d{2})[/\-](\d{4})\b`)
	reTaxID     = regexp.MustCompile(`(?i)\b(?:PT\s*)?(\d{9})\b`)
	reCurrency  = regexp.MustCompile(`\b(EUR|USD|GBP)\b|[€£$]`)
	reOrderNum  = regexp.MustCompile(`(?i)\b(?:encomenda|pedido|order|commande)[ \t]*(?:n[ºo\.]*)?[ \t]*[:\.]?[ \t]*([A-Z0-9/\-]{3,})`)
	reKVLine    = regexp.MustCompile(`^\s*([^:]{2,30})\s*:\s*(.+?)\s*$`)
)

// fieldSynonyms maps each logical field to its labels across PT/ES/FR/EN.
var fieldSynonyms = map[string][]string{
	"supplier": {"fornecedor", "supplier", "proveedor", "fournisseur", "emitente", "remetente"},
	"order":    {"encomenda", "pedido", "order", "commande", "requisicao"},
	"docnum":   {"documento", "guia", "fatura", "factura", "invoice", "numero"},
	"date":     {"data", "date", "fecha", "emissao"},
}

// maxSynonymDistance is the edit-distance budget for label matching. Two
// edits absorb the common OCR substitutions without letting unrelated words
// through.
const maxSynonymDistance = 2

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "ã", "a", "â", "a",
		"é", "e", "ê", "e", "í", "i",
		"ó", "o", "õ", "o", "ô", "o",
		"ú", "u", "ç", "c",
	)
	return replacer.Replace(s)
}

// matchesAnyKey reports whether a label cell fuzzily matches one of the
// synonyms for a field.
func matchesAnyKey(label string, synonyms []string) bool {
	label = normalizeLabel(label)
	if label == "" {
		return false
	}
	for _, syn := range synonyms {
		if label == syn || strings.Contains(label, syn) {
			return true
		}
		if abs(len(label)-len(syn)) <= maxSynonymDistance &&
			levenshtein.ComputeDistance(label, syn) <= maxSynonymDistance {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ExtractFields pulls document-level metadata out of acquired text. It scans
// "label: value" lines with fuzzy label matching first, then falls back to
// pattern search over the whole text for anything still missing.
func ExtractFields(text string) extract.DocFields {
	var f extract.DocFields

	for _, line := range strings.Split(text, "\n") {
		m := reKVLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// the lazy value group can capture whitespace when nothing follows
		// the colon
		label, value := m[1], strings.TrimSpace(m[2])
		if value == "" {
			continue
		}
		switch {
		case f.SupplierName == "" && matchesAnyKey(label, fieldSynonyms["supplier"]):
			f.SupplierName = value
		case f.OrderNumber == "" && matchesAnyKey(label, fieldSynonyms["order"]):
			f.OrderNumber = strings.ToUpper(strings.Fields(value)[0])
		case f.DocNumber == "" && matchesAnyKey(label, fieldSynonyms["docnum"]):
			f.DocNumber = value
		case f.DocDate == "" && matchesAnyKey(label, fieldSynonyms["date"]):
			if d := isoDate(value); d != "" {
				f.DocDate = d
			}
		}
	}

	if f.DocNumber == "" {
		f.DocNumber = reDocNumber.FindString(text)
	}
	if f.DocDate == "" {
		f.DocDate = isoDate(text)
	}
	if f.SupplierTaxID == "" {
		if m := reTaxID.FindStringSubmatch(text); m != nil {
			f.SupplierTaxID = m[1]
		}
	}
	if f.OrderNumber == "" {
		if m := reOrderNum.FindStringSubmatch(text); m != nil {
			f.OrderNumber = strings.ToUpper(m[1])
		}
	}
	f.Currency = currencyFrom(text)
	f.DocKind = string(SniffDocKind(text))
	return f
}

// isoDate converts the first DD/MM/YYYY (or DD-MM-YYYY) date to ISO form.
func isoDate(text string) string {
	m := reDocDate.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])
}

func currencyFrom(text string) string {
	m := reCurrency.FindString(text)
	switch m {
	case "":
		return "EUR"
	case "€":
		return "EUR"
	case "£":
		return "GBP"
	case "$":
		return "USD"
	default:
		return strings.ToUpper(m)
	}
}

// SniffDocKind classifies a document by vocabulary. Delivery-note keywords
// are checked first: mixed paperwork that mentions both the order and the
// shipment is reconciled as a delivery note.
func SniffDocKind(text string) constants.DocType {
	low := strings.ToLower(text)
	for _, kw := range []string{"guia de remessa", "guia de transporte", "delivery note", "albaran", "albarán", "bon de livraison"} {
		if strings.Contains(low, kw) {
			return constants.DocTypeDeliveryNote
		}
	}
	for _, kw := range []string{"nota de encomenda", "purchase order", "pedido de compra", "bon de commande"} {
		if strings.Contains(low, kw) {
			return constants.DocTypePurchaseOrder
		}
	}
	return constants.DocTypeDeliveryNote
}
