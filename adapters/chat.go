package adapters

import (
	"fmt"
	"regexp"
	"strings"
)

// chatCodec delimits fields with [[ ## name ## ]] headers.
type chatCodec struct{}

var chatHeader = regexp.MustCompile(`\[\[ ## (\w+) ## \]\]`)

func (chatCodec) describe(sig Signature) string {
	var b strings.Builder
	b.WriteString("All interactions will be structured in the following way, with the appropriate values filled in.\n\n")
	for _, field := range sig.Inputs {
		fmt.Fprintf(&b, "[[ ## %s ## ]]\n{%s}\n\n", field.Name, field.Name)
	}
	for _, field := range sig.Outputs {
		fmt.Fprintf(&b, "[[ ## %s ## ]]\n{%s}\n\n", field.Name, field.Name)
	}
	b.WriteString("[[ ## completed ## ]]")
	return b.String()
}

func (chatCodec) format(sig Signature, inputs map[string]any) string {
	var b strings.Builder
	for _, field := range sig.Inputs {
		fmt.Fprintf(&b, "[[ ## %s ## ]]\n%s\n\n", field.Name, valueString(inputs[field.Name]))
	}
	b.WriteString("Respond with the corresponding output fields, starting with the field ")
	for i, field := range sig.Outputs {
		if i > 0 {
			b.WriteString(", then ")
		}
		fmt.Fprintf(&b, "`[[ ## %s ## ]]`", field.Name)
	}
	b.WriteString(", and then ending with the marker for `[[ ## completed ## ]]`.")
	return b.String()
}

func (chatCodec) parse(sig Signature, text string) (map[string]any, error) {
	wanted := make(map[string]bool, len(sig.Outputs))
	for _, field := range sig.Outputs {
		wanted[field.Name] = true
	}

	ret := make(map[string]any)
	locs := chatHeader.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		name := text[loc[2]:loc[3]]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if !wanted[name] {
			continue
		}
		if _, ok := ret[name]; ok {
			continue
		}
		ret[name] = strings.TrimSpace(text[loc[1]:end])
	}

	// a single output may come back without headers
	if len(ret) == 0 && len(locs) == 0 && len(sig.Outputs) == 1 && strings.TrimSpace(text) != "" {
		ret[sig.Outputs[0].Name] = strings.TrimSpace(text)
	}

	if len(ret) == 0 {
		return nil, fmt.Errorf("%w: no output field headers", ErrParse)
	}
	return ret, nil
}
