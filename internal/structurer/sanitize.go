package structurer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmaia/inbound-recon/internal/numfmt"
)

// StripCodeFences removes a markdown fence wrapper some models insist on
// emitting around JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// SanitizeResponse repairs near-miss model output so the document can still
// validate: known key synonyms are renamed, quantities are coerced to
// canonical decimal strings, nulls and unknown keys are dropped. The repair
// list is returned for logging.
func SanitizeResponse(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var repaired []string
	rename := func(obj map[string]any, from, to string) {
		if v, ok := obj[from]; ok {
			if _, exists := obj[to]; !exists {
				obj[to] = v
			}
			delete(obj, from)
			repaired = append(repaired, from+"->"+to)
		}
	}

	rename(m, "items", "products")
	rename(m, "lines", "products")
	rename(m, "produtos", "products")
	rename(m, "supplier_name", "supplier")
	rename(m, "fornecedor", "supplier")
	rename(m, "nif", "supplier_nif")
	rename(m, "order", "order_number")
	rename(m, "encomenda", "order_number")

	allowedTop := map[string]struct{}{
		"supplier": {}, "supplier_nif": {}, "order_number": {}, "products": {},
	}
	for k, v := range m {
		if _, ok := allowedTop[k]; !ok {
			delete(m, k)
			repaired = append(repaired, k+"(unknown)")
			continue
		}
		if v == nil {
			delete(m, k)
			repaired = append(repaired, k+"(null)")
		}
	}

	products, _ := m["products"].([]any)
	allowedItem := map[string]struct{}{
		"code": {}, "description": {}, "quantity": {}, "unit": {}, "order_ref": {},
	}
	kept := make([]any, 0, len(products))
	for _, raw := range products {
		obj, ok := raw.(map[string]any)
		if !ok {
			repaired = append(repaired, "product(not-object)")
			continue
		}
		rename(obj, "qty", "quantity")
		rename(obj, "quantidade", "quantity")
		rename(obj, "sku", "code")
		rename(obj, "codigo", "code")
		rename(obj, "reference", "code")
		rename(obj, "descricao", "description")
		rename(obj, "ref", "order_ref")

		for k, v := range obj {
			if _, ok := allowedItem[k]; !ok {
				delete(obj, k)
				repaired = append(repaired, k+"(unknown)")
				continue
			}
			if v == nil {
				delete(obj, k)
				repaired = append(repaired, k+"(null)")
			}
		}

		// quantities arrive as numbers, locale strings, or garbage
		switch q := obj["quantity"].(type) {
		case float64:
			obj["quantity"] = numfmt.NormalizeQty(strconv.FormatFloat(q, 'f', -1, 64)).String()
			repaired = append(repaired, "quantity(number)")
		case string:
			d, err := numfmt.Normalize(q)
			if err != nil {
				delete(obj, "quantity")
				repaired = append(repaired, "quantity(invalid)")
			} else if d.String() != q {
				obj["quantity"] = d.String()
				repaired = append(repaired, "quantity(format)")
			}
		}
		if _, hasQty := obj["quantity"]; !hasQty {
			repaired = append(repaired, "product(no-quantity)")
			continue
		}
		if _, hasDesc := obj["description"]; !hasDesc {
			obj["description"] = ""
		}
		kept = append(kept, obj)
	}
	if products != nil {
		m["products"] = kept
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, repaired, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, repaired, nil
}
