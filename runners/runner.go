package runners

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/assertions"
	"github.com/reusee/optix/cmds"
	"github.com/reusee/optix/debugs"
	"github.com/reusee/optix/feedbacks"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/optixconfigs"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/syncs"
	"github.com/reusee/optix/toolguards"
	"github.com/reusee/optix/vars"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/reusee/optix/runners"

// maxTraceEvents bounds the tool events kept on a Result.
const maxTraceEvents = 20

var tapRun = cmds.Switch("-tap-run", "open a starlark REPL over each run result")

type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseContextAugmentation Phase = "context_augmentation"
	PhaseInvocation          Phase = "invocation"
	PhaseCoercion            Phase = "coercion"
	PhaseValidation          Phase = "validation"
	PhaseDone                Phase = "done"
	PhaseFailed              Phase = "failed"
)

var nextPhase = map[Phase]Phase{
	PhaseIdle:                PhaseContextAugmentation,
	PhaseContextAugmentation: PhaseInvocation,
	PhaseInvocation:          PhaseCoercion,
	PhaseCoercion:            PhaseValidation,
	PhaseValidation:          PhaseDone,
}

func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Collaborators are the optional services a run consults.
type Collaborators struct {
	Recaller Recaller
	Memory   Memory
	Tools    []toolguards.Tool
}

type RunOptions struct {
	Overrides resolvers.Overrides
	// SessionID groups runs in the feedback tracker. Empty means a fresh id.
	SessionID string
	// SkipOptimized runs the base program even when optimized state exists.
	SkipOptimized bool
}

type Runner struct {
	agent         playbooks.Agent
	spec          *playbooks.Spec
	program       programs.Program
	collaborators Collaborators

	Logger  dscope.Inject[logs.Logger]
	NewSpan dscope.Inject[logs.NewSpan]
	Tracing dscope.Inject[logs.TracerProvider]
	Prepare dscope.Inject[Prepare]
	Timeout dscope.Inject[optixconfigs.ProgramTimeout]
	Tracker dscope.Inject[*feedbacks.Tracker]
	Tap     dscope.Inject[debugs.Tap]
}

type NewRunner func(agent playbooks.Agent, spec *playbooks.Spec, program programs.Program, collaborators Collaborators) *Runner

func (Module) NewRunner(
	inject dscope.InjectStruct,
) NewRunner {
	return func(agent playbooks.Agent, spec *playbooks.Spec, program programs.Program, collaborators Collaborators) *Runner {
		ret := &Runner{
			agent:         agent,
			spec:          spec,
			program:       program,
			collaborators: collaborators,
		}
		inject(ret)
		return ret
	}
}

// runState is what the phases of one run share.
type runState struct {
	phase     Phase
	query     string
	input     string
	options   RunOptions
	prepared  *Prepared
	predicted programs.Prediction
	result    Result

	traceLock sync.Mutex
	trace     []toolguards.Event
}

func (s *runState) emit(ev toolguards.Event) {
	s.traceLock.Lock()
	defer s.traceLock.Unlock()
	s.trace = append(s.trace, ev)
	if len(s.trace) > maxTraceEvents {
		s.trace = slices.Clone(s.trace[len(s.trace)-maxTraceEvents:])
	}
}

func (s *runState) events() []toolguards.Event {
	s.traceLock.Lock()
	defer s.traceLock.Unlock()
	return slices.Clone(s.trace)
}

// Run answers query with the agent's program.
// The returned Result carries the phase reached and the collected tool trace even on error.
func (r *Runner) Run(ctx context.Context, query string, options RunOptions) (Result, error) {
	state := &runState{
		phase:   PhaseIdle,
		query:   query,
		input:   query,
		options: options,
	}
	state.result.SessionID = vars.FirstNonZero(options.SessionID, feedbacks.NewSessionID())
	state.result.MemoryEnabled = r.spec.Memory.Enabled && r.collaborators.Memory != nil

	ctx, _ = r.NewSpan()(ctx, "",
		"agent", r.agent.Name,
		"session", state.result.SessionID,
	)
	tracer := r.Tracing().Tracer(tracerName)
	ctx, runSpan := tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("optix.agent", r.agent.Name),
		attribute.String("optix.session", state.result.SessionID),
	))
	defer runSpan.End()

	for !state.phase.Terminal() {
		phase := state.phase
		phaseCtx, phaseSpan := tracer.Start(ctx, string(phase))
		err := r.step(phaseCtx, state)
		if err != nil {
			phaseSpan.RecordError(err)
			phaseSpan.SetStatus(codes.Error, err.Error())
		}
		phaseSpan.End()

		if err != nil {
			state.phase = PhaseFailed
			state.result.Phase = PhaseFailed
			state.result.Trace = state.events()
			runSpan.RecordError(err)
			runSpan.SetStatus(codes.Error, err.Error())
			r.Logger().ErrorContext(ctx, "run failed",
				"phase", phase,
				"error", err,
			)
			return state.result, logs.WrapSpan(ctx, err)
		}
		state.phase = nextPhase[phase]
	}

	state.result.Phase = PhaseDone
	state.result.Trace = state.events()
	runSpan.SetAttributes(attribute.Bool("optix.valid", state.result.IsValid))

	r.remember(ctx, state)
	r.Tracker().Record(state.result.SessionID, time.Now())
	if *tapRun {
		r.Tap()(ctx, "run", map[string]any{
			"query":  query,
			"result": state.result.Map(),
		})
	}

	r.Logger().InfoContext(ctx, "run done",
		"valid", state.result.IsValid,
		"fields", len(state.result.Fields),
		"tool_events", len(state.result.Trace),
	)
	return state.result, nil
}

func (r *Runner) step(ctx context.Context, state *runState) error {
	switch state.phase {
	case PhaseIdle:
		return r.setup(ctx, state)
	case PhaseContextAugmentation:
		r.augment(ctx, state)
		return nil
	case PhaseInvocation:
		return r.invoke(ctx, state)
	case PhaseCoercion:
		r.coerce(ctx, state)
		return nil
	case PhaseValidation:
		r.validate(state)
		return nil
	}
	return fmt.Errorf("unexpected phase %s", state.phase)
}

func (r *Runner) setup(ctx context.Context, state *runState) error {
	prepared, err := r.Prepare()(ctx, r.spec, r.program, PrepareOptions{
		Overrides: state.options.Overrides,
		Tools:     r.collaborators.Tools,
		Emit:      state.emit,
	})
	if err != nil {
		return err
	}
	state.prepared = prepared
	state.result.Model = prepared.Params.ModelName

	status := &state.result.Optimization
	status.OptimizationAvailable = r.agent.HasOptimized()
	if !status.OptimizationAvailable || state.options.SkipOptimized {
		return nil
	}
	loader, ok := prepared.Handle.(programs.Loader)
	if !ok {
		r.Logger().InfoContext(ctx, "program cannot load optimized state",
			"path", r.agent.OptimizedPath(),
		)
		return nil
	}
	if err := loader.Load(r.agent.OptimizedPath()); err != nil {
		r.Logger().WarnContext(ctx, "optimized state load failed, using base program",
			"path", r.agent.OptimizedPath(),
			"error", err,
		)
		return nil
	}
	status.UsedPreOptimized = true
	status.OptimizationUsed = true
	return nil
}

func (r *Runner) augment(ctx context.Context, state *runState) {
	logger := r.Logger()
	var parts []string
	if text := RetrievalContext(ctx, logger, r.spec, r.collaborators.Recaller, state.query); text != "" {
		parts = append(parts, text)
	}
	if text := MemoryContext(ctx, logger, r.spec, r.collaborators.Memory, state.query); text != "" {
		parts = append(parts, text)
	}
	state.input = AugmentQuery(state.query, strings.Join(parts, "\n\n"))
}

func (r *Runner) invoke(ctx context.Context, state *runState) error {
	inputField, _ := r.spec.IOFields()
	inputs := map[string]any{
		inputField: state.input,
	}
	timeout := time.Duration(r.Timeout())
	pred, err := syncs.Invoke(ctx, timeout, func(ctx context.Context) (programs.Prediction, error) {
		return state.prepared.Handle.Call(ctx, inputs)
	})
	if errors.Is(err, syncs.ErrDeadline) {
		return wrap(&TimeoutError{
			Timeout: timeout,
		})
	}
	if err != nil {
		return &ProgramInvocationError{
			Err: err,
		}
	}
	state.predicted = pred
	return nil
}

func (r *Runner) coerce(ctx context.Context, state *runState) {
	_, outputs := r.spec.IOFields()
	fields := programs.ResultFields(state.predicted, outputs)

	if post := state.prepared.Caps.PredictionPostprocessor; post != nil {
		processed, err := post.PostprocessPrediction(state.predicted, fields, outputs)
		if err != nil {
			r.Logger().WarnContext(ctx, "prediction postprocess failed, keeping raw fields",
				"error", err,
			)
		} else if processed != nil {
			fields = processed
		}
	} else {
		fields = assertions.Coerce(fields, outputs, r.spec.OutputTypes(), r.spec.Program.Signature.OutputMode)
	}

	state.result.Fields = fields
}

func (r *Runner) validate(state *runState) {
	valid := hasContent(state.result.Fields)
	if validator := state.prepared.Caps.PredictionValidator; validator != nil {
		res := validator.ValidatePredictionResult(state.result.Fields)
		state.result.Assertion = &res
		if res.Invalidates() {
			valid = false
		}
	}
	state.result.IsValid = valid
}

// remember persists the answered query when memory is enabled. Failures are logged.
func (r *Runner) remember(ctx context.Context, state *runState) {
	if !state.result.MemoryEnabled {
		return
	}
	err := r.collaborators.Memory.Persist(ctx, Interaction{
		Agent:    r.agent.Name,
		Query:    state.query,
		Response: responseText(state.result.Fields),
	})
	if err != nil {
		r.Logger().WarnContext(ctx, "memory persist failed",
			"error", err,
		)
	}
}

func responseText(fields map[string]any) string {
	if len(fields) == 1 {
		for _, v := range fields {
			return fmt.Sprint(v)
		}
	}
	names := slices.Sorted(maps.Keys(fields))
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %v", name, fields[name]))
	}
	return strings.Join(lines, "\n")
}
