package programs

import (
	"context"
	"errors"

	"github.com/reusee/e5"
	"github.com/reusee/optix/adapters"
	"github.com/reusee/optix/assertions"
	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/toolguards"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

var ErrNoLM = errors.New("no language model configured")

// Settings is what a program is built with.
type Settings struct {
	LM      lms.LM
	Adapter adapters.Adapter
	Tools   []toolguards.Tool
	Spec    *playbooks.Spec
}

// Prediction is whatever a handle returns. Fields extracts the declared outputs from it.
type Prediction = any

// Program is an agent implementation. BuildProgram may be called more than once.
type Program interface {
	BuildProgram(settings Settings) (Handle, error)
}

// Handle is a built, callable program.
type Handle interface {
	Call(ctx context.Context, inputs map[string]any) (Prediction, error)
}

// LMSetter programs configure their own language model instead of using Settings.LM.
type LMSetter interface {
	SetupLM(params resolvers.RuntimeParams) error
}

type RuntimeConfigurer interface {
	RuntimeConfig() resolvers.RuntimeConfig
}

type PredictionValidator interface {
	ValidatePredictionResult(fields map[string]any) assertions.Result
}

// PredictionPostprocessor normalizes the extracted result, for example by coercing field types.
type PredictionPostprocessor interface {
	PostprocessPrediction(pred Prediction, result map[string]any, outputFields []string) (map[string]any, error)
}

type CompileFlagger interface {
	CompileFlags() resolvers.CompileFlags
}

// OptimizationConfigurer programs contribute optimizer settings, keyed by optimizer name.
type OptimizationConfigurer interface {
	OptimizationConfig() map[string]any
}

type AssertionConfigurer interface {
	AssertionConfig() assertions.Config
}

// Loader handles restore persisted optimized state.
type Loader interface {
	Load(path string) error
}

type Saver interface {
	Save(path string) error
}

// Mutable handles expose named instruction texts and can be rebuilt with replacements.
type Mutable interface {
	Handle
	Components() map[string]string
	WithComponents(components map[string]string) (Handle, error)
}
