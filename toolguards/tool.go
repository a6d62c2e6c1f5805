package toolguards

import (
	"context"

	"github.com/invopop/jsonschema"
)

// Tool is a callable exposed to programs.
type Tool struct {
	Name        string
	Description string
	// Params are the argument names the tool declares.
	Params []string
	Call   func(ctx context.Context, args map[string]any) (any, error)
}

// ParamsOf returns the JSON property names of the argument struct v, in declaration order.
func ParamsOf(v any) []string {
	return SchemaParams(SchemaOf(v))
}

// SchemaOf reflects the argument struct v into an inline JSON schema.
// Unnamed struct types are accepted; the root is the struct itself, not a definition.
func SchemaOf(v any) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	return reflector.Reflect(v)
}

func SchemaParams(schema *jsonschema.Schema) (ret []string) {
	if schema == nil || schema.Properties == nil {
		return nil
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		ret = append(ret, pair.Key)
	}
	return
}

func (t Tool) declares(param string) bool {
	for _, p := range t.Params {
		if p == param {
			return true
		}
	}
	return false
}
