package mcpserver

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// prop builds a single JSON-schema property description (§4.5 "Each tool
// has an input schema... declaring its required and optional parameters,
// types, and defaults").
func prop(schemaType, description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: schemaType, Description: description}
}

func propDefault(schemaType, description string, def any) *jsonschema.Schema {
	s := prop(schemaType, description)
	s.Default = mustJSON(def)
	return s
}

func arrayOfStrings(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: description,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

func object(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
