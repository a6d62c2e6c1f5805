package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/reusee/optix/lms"
)

// twoStep lets the model answer freely, then extracts the output fields from that answer with the json adapter.
type twoStep struct {
	options Options
}

var _ Adapter = new(twoStep)

func (t *twoStep) Type() string {
	return "twostep"
}

func (t *twoStep) Call(ctx context.Context, lm lms.LM, sig Signature, inputs map[string]any) (map[string]any, error) {
	var prompt strings.Builder
	for _, field := range sig.Inputs {
		fmt.Fprintf(&prompt, "%s:\n%s\n\n", field.Name, valueString(inputs[field.Name]))
	}
	fmt.Fprintf(&prompt, "Provide: %s.", strings.Join(sig.OutputNames(), ", "))

	resp, err := lm.Generate(ctx, lms.Prompt(sig.Instruction, prompt.String()))
	if err != nil {
		return nil, err
	}

	extractor := &formatted{
		typ:     "json",
		options: t.options,
		codec:   jsonCodec{},
		json:    true,
	}
	return extractor.Call(ctx, lm, Signature{
		Instruction: "Extract the output fields from the given text. Use only information present in the text.",
		Inputs: []Field{
			{
				Name:        "text",
				Description: "a free-form answer",
			},
		},
		Outputs: sig.Outputs,
	}, map[string]any{
		"text": resp.Text,
	})
}
