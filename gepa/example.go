package gepa

import (
	"context"
	"maps"

	"github.com/reusee/optix/programs"
)

// Example is one scenario. Values holds inputs and expected outputs; InputKeys names the inputs.
type Example struct {
	Values    map[string]any
	InputKeys []string
}

func (e Example) Inputs() map[string]any {
	ret := make(map[string]any, len(e.InputKeys))
	for _, key := range e.InputKeys {
		if v, ok := e.Values[key]; ok {
			ret[key] = v
		}
	}
	return ret
}

// Labels are the values that are not inputs.
func (e Example) Labels() map[string]any {
	ret := maps.Clone(e.Values)
	for _, key := range e.InputKeys {
		delete(ret, key)
	}
	return ret
}

// Feedback is a metric verdict. Text is shown to the reflection model.
type Feedback struct {
	Score float64
	Text  string
}

type Metric func(ctx context.Context, gold Example, pred programs.Prediction) Feedback
