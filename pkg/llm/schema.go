package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONObjectFormat returns the plain json_object response format.
func JSONObjectFormat() *ResponseFormat {
	return &ResponseFormat{Type: "json_object"}
}

// SchemaResponseFormat builds a json_schema response format from a Go
// value. The schema is reflected from the value's struct tags.
func SchemaResponseFormat(name string, v any) (*ResponseFormat, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %q: %w", name, err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(raw, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to convert schema for %q: %w", name, err)
	}

	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchemaFormat{
			Name:   name,
			Strict: true,
			Schema: schemaMap,
		},
	}, nil
}
