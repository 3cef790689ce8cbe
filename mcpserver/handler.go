package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler is one tool catalog entry: a name, description, and input schema
// for introspection via list_tools, plus the call_tool execution itself
// (§4.5 "Maintain a registry mapping tool id -> {display name, description,
// input schema, handler}").
type Handler interface {
	Name() string
	Description() string
	InputSchema() *jsonschema.Schema
	Handle(ctx context.Context, arguments json.RawMessage) (any, error)
}

// decodeArgs unmarshals arguments into a fresh T, tolerating a missing
// arguments payload as an all-defaults object (§4.5 "Extraneous fields are
// ignored" implies absent fields default rather than error).
func decodeArgs[T any](arguments json.RawMessage) (T, error) {
	var args T
	if len(arguments) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return args, err
	}
	return args, nil
}
