package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/reusee/e5"
	"github.com/reusee/optix/lms"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

var (
	ErrUnknownAdapter = errors.New("unknown adapter")
	ErrParse          = errors.New("cannot parse model output")
)

// Field is one input or output slot of a signature.
type Field struct {
	Name        string
	Type        string
	Description string
}

// Signature describes one model call: an instruction plus named inputs and outputs.
type Signature struct {
	Instruction string
	Inputs      []Field
	Outputs     []Field
}

func (s Signature) OutputNames() []string {
	ret := make([]string, 0, len(s.Outputs))
	for _, field := range s.Outputs {
		ret = append(ret, field.Name)
	}
	return ret
}

type Options struct {
	NativeFunctionCalling bool
	Strict                bool
	RetryOnParseError     int
}

// Adapter formats a signature call for a language model and parses the reply into output fields.
type Adapter interface {
	Type() string
	Call(ctx context.Context, lm lms.LM, sig Signature, inputs map[string]any) (map[string]any, error)
}

// New builds the adapter of type typ.
func New(typ string, options Options) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "chat":
		return &formatted{
			typ:     "chat",
			options: options,
			codec:   chatCodec{},
		}, nil
	case "json":
		return &formatted{
			typ:     "json",
			options: options,
			codec:   jsonCodec{},
			json:    true,
		}, nil
	case "xml":
		return &formatted{
			typ:     "xml",
			options: options,
			codec:   xmlCodec{},
		}, nil
	case "twostep":
		return &twoStep{
			options: options,
		}, nil
	}
	return nil, wrap(fmt.Errorf("%w: %q", ErrUnknownAdapter, typ))
}

type codec interface {
	describe(sig Signature) string
	format(sig Signature, inputs map[string]any) string
	parse(sig Signature, text string) (map[string]any, error)
}

type formatted struct {
	typ     string
	options Options
	codec   codec
	json    bool
}

var _ Adapter = new(formatted)

func (f *formatted) Type() string {
	return f.typ
}

// Call asks the model, retrying RetryOnParseError more times with the parse error shown to the model.
func (f *formatted) Call(ctx context.Context, lm lms.LM, sig Signature, inputs map[string]any) (map[string]any, error) {
	req := lms.Request{
		System: systemPrompt(sig, f.codec.describe(sig)),
		Messages: []lms.Message{
			{
				Role:    lms.RoleUser,
				Content: f.codec.format(sig, inputs),
			},
		},
		JSON: f.json,
	}

	var lastErr error
	for attempt := 0; attempt <= f.options.RetryOnParseError; attempt++ {
		resp, err := lm.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		ret, err := f.codec.parse(sig, resp.Text)
		if err == nil {
			err = checkComplete(sig, ret, f.options.Strict)
		}
		if err == nil {
			return ret, nil
		}
		lastErr = err
		req.Messages = append(req.Messages,
			lms.Message{
				Role:    lms.RoleAssistant,
				Content: resp.Text,
			},
			lms.Message{
				Role:    lms.RoleUser,
				Content: fmt.Sprintf("Your reply could not be parsed: %v\nReply again in the required format.", lastErr),
			},
		)
	}
	return nil, wrap(lastErr)
}

func checkComplete(sig Signature, fields map[string]any, strict bool) error {
	var missing []string
	for _, field := range sig.Outputs {
		if _, ok := fields[field.Name]; !ok {
			missing = append(missing, field.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	// lenient mode accepts partial output as long as something was extracted
	if !strict && len(fields) > 0 {
		return nil
	}
	return fmt.Errorf("%w: missing fields %s", ErrParse, strings.Join(missing, ", "))
}

func systemPrompt(sig Signature, format string) string {
	var b strings.Builder
	if len(sig.Inputs) > 0 {
		b.WriteString("Your input fields are:\n")
		writeFields(&b, sig.Inputs)
	}
	b.WriteString("Your output fields are:\n")
	writeFields(&b, sig.Outputs)
	b.WriteString("\n")
	b.WriteString(format)
	if sig.Instruction != "" {
		b.WriteString("\n\nIn adhering to this structure, your objective is:\n")
		b.WriteString(sig.Instruction)
	}
	return b.String()
}

func writeFields(b *strings.Builder, fields []Field) {
	for i, field := range fields {
		fmt.Fprintf(b, "%d. `%s`", i+1, field.Name)
		if field.Type != "" {
			fmt.Fprintf(b, " (%s)", field.Type)
		}
		if field.Description != "" {
			fmt.Fprintf(b, ": %s", field.Description)
		}
		b.WriteString("\n")
	}
}

func valueString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		if bs, err := json.Marshal(v); err == nil {
			return string(bs)
		}
	}
	return fmt.Sprint(v)
}
