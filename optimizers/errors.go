package optimizers

import (
	"errors"

	"github.com/reusee/e5"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

var (
	ErrOptimizerUnavailable = errors.New("GEPA optimizer unavailable")
	ErrNoScenarios          = errors.New("no scenarios found in playbook for optimization")
	ErrNoExamples           = errors.New("no valid training examples from scenarios")
)
