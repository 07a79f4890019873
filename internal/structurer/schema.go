package structurer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildProductsJSONSchema returns the response contract as a JSON-Schema map.
// It is embedded in the prompt and also used locally to validate the reply.
func BuildProductsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"supplier":     map[string]any{"type": "string"},
			"supplier_nif": map[string]any{"type": "string", "pattern": `^\d{9}$`},
			"order_number": map[string]any{"type": "string"},
			"products": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"code":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"quantity":    map[string]any{"type": "string", "pattern": `^\d+(\.\d{1,3})?$`},
						"unit":        map[string]any{"type": "string"},
						"order_ref":   map[string]any{"type": "string"},
					},
					"required": []string{"description", "quantity"},
				},
			},
		},
		"required": []string{"products"},
	}
}

// ValidateJSONAgainstSchema validates raw JSON against a schema map.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
