package analysis

import "sort"

// AnalysisSchema returns the canonical JSON Schema (draft 2020-12 subset) for
// DocumentAnalysis as a generic map, in the shape the legacy schema generator
// emitted: defaults on every property and the Sensitivity record under $defs.
// MakeStrict post-processes this for providers that demand strict mode; the
// canonical (lenient) form is what we validate responses against locally.
func AnalysisSchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "DocumentAnalysis",
		"properties": map[string]any{
			"document_type": map[string]any{"type": "string", "default": ""},
			"title":         map[string]any{"type": "string", "default": ""},
			"date":          map[string]any{"type": "string", "default": ""},
			"date_confidence": map[string]any{
				"type": "number", "minimum": 0.0, "maximum": 1.0, "default": 0.0,
			},
			"summary_en": map[string]any{"type": "string", "default": ""},
			"summary_zh": map[string]any{"type": "string", "default": ""},
			"key_people": map[string]any{
				"type": "array", "items": map[string]any{"type": "string"}, "default": []any{},
			},
			"key_dates": map[string]any{
				"type": "array", "items": map[string]any{"type": "string"}, "default": []any{},
			},
			"sensitivity": map[string]any{"$ref": "#/$defs/Sensitivity"},
			"tags": map[string]any{
				"type": "array", "items": map[string]any{"type": "string"}, "default": []any{},
			},
			"language": map[string]any{"type": "string", "default": ""},
			"quality":  map[string]any{"type": "string", "default": ""},
		},
		"$defs": map[string]any{
			"Sensitivity": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"has_ssn":       map[string]any{"type": "boolean", "default": false},
					"has_financial": map[string]any{"type": "boolean", "default": false},
					"has_medical":   map[string]any{"type": "boolean", "default": false},
				},
			},
		},
	}
}

// MakeStrict returns a deep-transformed copy of schema suitable for strict
// structured-output modes: every object node gains additionalProperties:false
// and a required list covering all of its property keys, and default
// annotations are stripped. Recurses into nested properties, array items, and
// $defs. Total over well-formed schema trees.
func MakeStrict(schema map[string]any) map[string]any {
	out := deepCopyMap(schema)
	makeStrict(out)
	return out
}

func makeStrict(node map[string]any) {
	if props, ok := node["properties"].(map[string]any); ok && node["type"] == "object" {
		node["additionalProperties"] = false
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		node["required"] = keys
		for _, v := range props {
			if prop, ok := v.(map[string]any); ok {
				delete(prop, "default")
				makeStrict(prop)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		makeStrict(items)
	}
	if defs, ok := node["$defs"].(map[string]any); ok {
		for _, v := range defs {
			if def, ok := v.(map[string]any); ok {
				makeStrict(def)
			}
		}
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
