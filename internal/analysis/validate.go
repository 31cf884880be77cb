package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates data against schemaMap.
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

// decodeAnalysis validates a structured payload against the canonical
// (lenient) schema and unmarshals it. Unknown keys pass validation and are
// dropped by encoding/json; missing keys fall back to zero values. Type
// mismatches and malformed JSON surface as ParseError.
func decodeAnalysis(provider string, raw []byte) (DocumentAnalysis, error) {
	if err := ValidateJSONAgainstSchema(AnalysisSchema(), raw); err != nil {
		return DocumentAnalysis{}, &ParseError{Provider: provider, Raw: excerpt(string(raw)), Err: err}
	}
	var out DocumentAnalysis
	if err := json.Unmarshal(raw, &out); err != nil {
		return DocumentAnalysis{}, &ParseError{Provider: provider, Raw: excerpt(string(raw)), Err: err}
	}
	return out, nil
}
