package optimizers

import (
	"context"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/gepa"
	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/runners"
	"github.com/reusee/optix/vars"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	tracerName = "github.com/reusee/optix/optimizers"

	OptimizerName = "GEPA"

	reflectionTemperature = 1.0
	reflectionMaxTokens   = 32000
)

type OptimizeOptions struct {
	// Force re-optimizes when optimized state exists.
	Force     bool
	Overrides resolvers.Overrides
}

type Result struct {
	Success               bool      `json:"success"`
	Note                  string    `json:"note,omitempty"`
	Error                 string    `json:"error,omitempty"`
	Err                   error     `json:"-"`
	TrainingExamples      int       `json:"training_examples"`
	OptimizerName         string    `json:"optimizer,omitempty"`
	AssertionMetricWeight float64   `json:"assertion_metric_weight"`
	AvgQualityScore       *float64  `json:"avg_quality_score,omitempty"`
	AvgAssertionScore     *float64  `json:"avg_assertion_score,omitempty"`
	AvgBlendedScore       *float64  `json:"avg_blended_score,omitempty"`
	BestScore             float64   `json:"best_score"`
	MetricCalls           int       `json:"metric_calls"`
	SavedPath             string    `json:"saved_path,omitempty"`
	StartedAt             time.Time `json:"started_at"`
	CompletedAt           time.Time `json:"completed_at"`
}

// Optimizer tunes an agent's program instructions against the playbook scenarios.
type Optimizer struct {
	agent    playbooks.Agent
	spec     *playbooks.Spec
	program  programs.Program
	recaller runners.Recaller

	Logger    dscope.Inject[logs.Logger]
	NewSpan   dscope.Inject[logs.NewSpan]
	Tracing   dscope.Inject[logs.TracerProvider]
	Env       dscope.Inject[configs.Env]
	Prepare   dscope.Inject[runners.Prepare]
	Resolver  dscope.Inject[resolvers.Resolver]
	NewLM     dscope.Inject[lms.New]
	NewEngine dscope.Inject[gepa.NewEngine]
}

type NewOptimizer func(agent playbooks.Agent, spec *playbooks.Spec, program programs.Program, recaller runners.Recaller) *Optimizer

func (Module) NewOptimizer(
	inject dscope.InjectStruct,
) NewOptimizer {
	return func(agent playbooks.Agent, spec *playbooks.Spec, program programs.Program, recaller runners.Recaller) *Optimizer {
		ret := &Optimizer{
			agent:    agent,
			spec:     spec,
			program:  program,
			recaller: recaller,
		}
		inject(ret)
		return ret
	}
}

// Optimize never fails: errors and panics are reported on the Result.
func (o *Optimizer) Optimize(ctx context.Context, options OptimizeOptions) (ret Result) {
	ret.StartedAt = time.Now()
	ctx, _ = o.NewSpan()(ctx, "",
		"agent", o.agent.Name,
		"op", "optimize",
	)
	ctx, span := o.Tracing().Tracer(tracerName).Start(ctx, "optimize")
	span.SetAttributes(attribute.String("optix.agent", o.agent.Name))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			ret.Success = false
			ret.Err = fmt.Errorf("optimization panic: %v", p)
		}
		if ret.Err != nil {
			ret.Success = false
			ret.Error = ret.Err.Error()
			span.RecordError(ret.Err)
			span.SetStatus(codes.Error, ret.Error)
			o.Logger().ErrorContext(ctx, "optimization failed",
				"error", ret.Err,
			)
		}
		ret.CompletedAt = time.Now()
	}()

	ret.Err = o.optimize(ctx, options, &ret)
	return
}

func (o *Optimizer) optimize(ctx context.Context, options OptimizeOptions, ret *Result) error {
	if o.agent.HasOptimized() && !options.Force {
		ret.Success = true
		ret.Note = "already optimized"
		o.Logger().InfoContext(ctx, "optimized state exists, use -force to re-optimize",
			"path", o.agent.OptimizedPath(),
		)
		return nil
	}

	scenarios := o.spec.AllScenarios()
	if len(scenarios) == 0 {
		return ErrNoScenarios
	}

	caps := programs.Probe(o.program)
	var programCfg map[string]any
	if caps.OptimizationConfigurer != nil {
		programCfg = caps.OptimizationConfigurer.OptimizationConfig()
	}
	cfg := gepaConfig(o.spec.Optimization.Optimizer.Params, programCfg)

	var flags resolvers.CompileFlags
	if caps.CompileFlagger != nil {
		flags = caps.CompileFlagger.CompileFlags()
	}
	overrides := options.Overrides
	overrides.Model = vars.FirstNonZero(overrides.Model, flags.ModelOverride, stringParam(cfg, "task_model"))

	prepared, err := o.Prepare()(ctx, o.spec, o.program, runners.PrepareOptions{
		Overrides: overrides,
	})
	if err != nil {
		return err
	}
	student, ok := prepared.Handle.(programs.Mutable)
	if !ok {
		return wrap(fmt.Errorf("%w: %T has no tunable components", ErrOptimizerUnavailable, prepared.Handle))
	}

	examples := o.examples(ctx, scenarios)
	if len(examples) == 0 {
		return ErrNoExamples
	}

	teacher, err := o.teacherParams(prepared.Params, cfg, overrides, flags)
	if err != nil {
		return err
	}
	reflection, err := o.NewLM()(teacher)
	if err != nil {
		return err
	}

	weight := o.metricWeight(caps)
	ret.AssertionMetricWeight = weight
	_, outputs := o.spec.IOFields()
	metric := NewMetric(outputs, weight, caps)

	engineCfg, err := gepa.ConfigFromParams(initParams(cfg, metric.Feedback, reflection))
	if err != nil {
		return err
	}
	engine, err := o.NewEngine()(engineCfg)
	if err != nil {
		return err
	}
	input, err := gepa.CompileInputFromParams(compileParams(cfg, student, examples))
	if err != nil {
		return err
	}

	o.Logger().InfoContext(ctx, "optimization started",
		"examples", len(examples),
		"task_model", prepared.Params.ModelName,
		"teacher_model", teacher.ModelName,
		"assertion_weight", weight,
	)
	compiled, err := engine.Compile(ctx, input)
	if err != nil {
		return err
	}

	if saver, ok := compiled.Best.(programs.Saver); ok {
		path := o.agent.OptimizedPath()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return wrap(err)
		}
		if err := saver.Save(path); err != nil {
			return wrap(err)
		}
		ret.SavedPath = path
	}

	ret.Success = true
	ret.TrainingExamples = len(examples)
	ret.OptimizerName = OptimizerName
	ret.BestScore = round4(compiled.BestScore)
	ret.MetricCalls = compiled.MetricCalls
	if stats := metric.Stats(); stats.Count > 0 {
		quality, assertion, blended := stats.averages()
		ret.AvgQualityScore = vars.PtrTo(round4(quality))
		ret.AvgAssertionScore = vars.PtrTo(round4(assertion))
		ret.AvgBlendedScore = vars.PtrTo(round4(blended))
	}
	o.Logger().InfoContext(ctx, "optimization done",
		"best_score", ret.BestScore,
		"metric_calls", ret.MetricCalls,
		"saved", ret.SavedPath,
	)
	return nil
}

// examples turns scenarios into examples keyed by the input field.
// The input is context-augmented the same way runs are.
func (o *Optimizer) examples(ctx context.Context, scenarios []playbooks.Scenario) (ret []gepa.Example) {
	inputField, _ := o.spec.IOFields()
	for _, scenario := range scenarios {
		if len(scenario.Input) == 0 && len(scenario.ExpectedOutput) == 0 {
			continue
		}
		values := maps.Clone(scenario.Input)
		if values == nil {
			values = make(map[string]any)
		}
		if raw, ok := values[inputField]; ok && raw != nil {
			if query := strings.TrimSpace(fmt.Sprint(raw)); query != "" {
				if text := runners.RetrievalContext(ctx, o.Logger(), o.spec, o.recaller, query); text != "" {
					values[inputField] = runners.AugmentQuery(query, text)
				}
			}
		}
		maps.Copy(values, scenario.ExpectedOutput)
		ret = append(ret, gepa.Example{
			Values:    values,
			InputKeys: []string{inputField},
		})
	}
	return
}

// teacherParams resolves the reflection model.
// A local task model is reused unless a teacher model is configured.
func (o *Optimizer) teacherParams(task resolvers.RuntimeParams, cfg map[string]any, overrides resolvers.Overrides, flags resolvers.CompileFlags) (ret resolvers.RuntimeParams, err error) {
	configured := vars.FirstNonZero(stringParam(cfg, "reflection_lm"), stringParam(cfg, "teacher_model"))
	if strings.HasPrefix(task.ModelName, "ollama_chat/") {
		ret = task
		var env string
		if getenv := o.Env(); getenv != nil {
			env = strings.TrimSpace(getenv("OPTIX_TEACHER_MODEL"))
		}
		if model := vars.FirstNonZero(env, configured); model != "" {
			ret.ModelName = resolvers.LocalModelName(model)
		}
	} else {
		ret, err = o.Resolver().Resolve(o.spec, resolvers.Overrides{
			Model:    configured,
			Provider: overrides.Provider,
			Local:    overrides.Local,
			Cloud:    overrides.Cloud,
		}, resolvers.PurposeTeacher, flags)
		if err != nil {
			return ret, err
		}
	}
	ret.Temperature = reflectionTemperature
	ret.MaxTokens = reflectionMaxTokens
	return ret, nil
}

// metricWeight prefers the program's assertion config over the playbook's.
func (o *Optimizer) metricWeight(caps programs.Capabilities) float64 {
	cfg := o.spec.Program.Assertions
	if caps.AssertionConfigurer != nil {
		cfg = caps.AssertionConfigurer.AssertionConfig()
	}
	return cfg.Weight()
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
