package adapters

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// xmlCodec wraps each field in <name>...</name> tags.
type xmlCodec struct{}

func (xmlCodec) describe(sig Signature) string {
	var b strings.Builder
	b.WriteString("All interactions will be structured in the following way, with the appropriate values filled in.\n\n")
	for _, field := range sig.Inputs {
		fmt.Fprintf(&b, "<%s>\n{%s}\n</%s>\n\n", field.Name, field.Name, field.Name)
	}
	for _, field := range sig.Outputs {
		fmt.Fprintf(&b, "<%s>\n{%s}\n</%s>\n\n", field.Name, field.Name, field.Name)
	}
	return strings.TrimSpace(b.String())
}

func (xmlCodec) format(sig Signature, inputs map[string]any) string {
	var b strings.Builder
	for _, field := range sig.Inputs {
		fmt.Fprintf(&b, "<%s>\n%s\n</%s>\n\n", field.Name, html.EscapeString(valueString(inputs[field.Name])), field.Name)
	}
	b.WriteString("Respond with the corresponding output fields wrapped in XML tags: ")
	for i, field := range sig.Outputs {
		if i > 0 {
			b.WriteString(", then ")
		}
		fmt.Fprintf(&b, "`<%s>`", field.Name)
	}
	b.WriteString(".")
	return b.String()
}

func (xmlCodec) parse(sig Signature, text string) (map[string]any, error) {
	ret := make(map[string]any)
	for _, field := range sig.Outputs {
		name := regexp.QuoteMeta(field.Name)
		pattern := regexp.MustCompile(`(?s)<` + name + `>(.*?)</` + name + `>`)
		if match := pattern.FindStringSubmatch(text); match != nil {
			ret[field.Name] = html.UnescapeString(strings.TrimSpace(match[1]))
		}
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("%w: no output field tags", ErrParse)
	}
	return ret, nil
}
