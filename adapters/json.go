package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// jsonCodec asks for one JSON object whose keys are the output fields.
type jsonCodec struct{}

func (jsonCodec) describe(sig Signature) string {
	schema, err := json.MarshalIndent(OutputSchema(sig), "", "  ")
	if err != nil {
		schema = []byte("{}")
	}
	return "Reply with a single JSON object and nothing else. It must match this JSON schema:\n" + string(schema)
}

func (jsonCodec) format(sig Signature, inputs map[string]any) string {
	var b strings.Builder
	for _, field := range sig.Inputs {
		fmt.Fprintf(&b, "%s: %s\n", field.Name, valueString(inputs[field.Name]))
	}
	b.WriteString("\nRespond with a JSON object in the following order of fields: ")
	b.WriteString(strings.Join(sig.OutputNames(), ", "))
	b.WriteString(".")
	return b.String()
}

func (jsonCodec) parse(sig Signature, text string) (map[string]any, error) {
	object := extractJSONObject(text)
	if object == "" {
		return nil, fmt.Errorf("%w: no JSON object", ErrParse)
	}
	var ret map[string]any
	if err := json.Unmarshal([]byte(object), &ret); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return ret, nil
}

// extractJSONObject returns the outermost {...} span of text.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

// OutputSchema is the JSON schema of the signature outputs.
func OutputSchema(sig Signature) *jsonschema.Schema {
	properties := jsonschema.NewProperties()
	required := make([]string, 0, len(sig.Outputs))
	for _, field := range sig.Outputs {
		properties.Set(field.Name, &jsonschema.Schema{
			Type:        jsonType(field.Type),
			Description: field.Description,
		})
		required = append(required, field.Name)
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func jsonType(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	hint = strings.TrimPrefix(hint, "optional[")
	switch {
	case strings.HasPrefix(hint, "int"):
		return "integer"
	case strings.HasPrefix(hint, "float"), strings.HasPrefix(hint, "number"):
		return "number"
	case strings.HasPrefix(hint, "bool"):
		return "boolean"
	case strings.HasPrefix(hint, "list"), strings.HasPrefix(hint, "array"):
		return "array"
	case strings.HasPrefix(hint, "dict"), strings.HasPrefix(hint, "object"):
		return "object"
	}
	return "string"
}
