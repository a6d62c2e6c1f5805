package optimizers

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/modes"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/resolvers"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testPlaybook = `
metadata:
  name: Adder
language_model:
  provider: ollama
  model: llama3.1:8b
tasks:
  - name: add
    instruction: Add the numbers.
    inputs:
      - name: question
        type: str
    outputs:
      - name: answer
        type: str
dspy:
  assertions:
    enabled: true
    non_empty: [answer]
optimization:
  optimizer:
    params:
      max_metric_calls: 4
      num_threads: 1
`

const testScenarios = `
feature_specifications:
  scenarios:
    - name: small
      input:
        question: what is 2+3
      expected_output:
        answer: "5"
    - name: smaller
      input:
        question: what is 1+4
      expected_output:
        answer: "5"
`

func testSpec(t *testing.T, extra string) *playbooks.Spec {
	spec, err := playbooks.Parse([]byte(testPlaybook + extra))
	if err != nil {
		t.Fatal(err)
	}
	return spec
}

type lmRecorder struct {
	mu     sync.Mutex
	params []resolvers.RuntimeParams
}

func (l *lmRecorder) add(params resolvers.RuntimeParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.params = append(l.params, params)
}

func newTestScope(t *testing.T, lm *lms.Scripted, recorder *lmRecorder, env map[string]string) (dscope.Scope, *tracetest.SpanRecorder) {
	spans := tracetest.NewSpanRecorder()
	return dscope.New(
		modes.ForTest(t),
		new(Module),
	).Fork(
		func() configs.Loader {
			return configs.NewLoaderFromSources(nil, "")
		},
		func() configs.Env {
			return configs.MapEnv(env)
		},
		func() lms.New {
			return func(params resolvers.RuntimeParams) (lms.LM, error) {
				recorder.add(params)
				return lm, nil
			}
		},
		func() logs.TracerProvider {
			return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
		},
	), spans
}

func newTestOptimizer(scope dscope.Scope, agent playbooks.Agent, spec *playbooks.Spec) (ret *Optimizer) {
	scope.Call(func(
		newOptimizer NewOptimizer,
	) {
		ret = newOptimizer(agent, spec, programs.NewPredict(spec), nil)
	})
	return
}

func requestText(req lms.Request) string {
	var b strings.Builder
	b.WriteString(req.System)
	for _, msg := range req.Messages {
		b.WriteString("\n")
		b.WriteString(msg.Content)
	}
	return b.String()
}

func TestOptimize(t *testing.T) {
	lm := &lms.Scripted{
		Reply: func(req lms.Request) (string, error) {
			text := requestText(req)
			if strings.Contains(text, "Your task is to write a new instruction") {
				return "```\nReply with the sum as digits only.\n```", nil
			}
			if strings.Contains(text, "digits only") {
				return "[[ ## answer ## ]]\n5\n\n[[ ## completed ## ]]", nil
			}
			return "[[ ## answer ## ]]\nfive\n\n[[ ## completed ## ]]", nil
		},
	}
	recorder := new(lmRecorder)
	scope, spans := newTestScope(t, lm, recorder, nil)
	agent := playbooks.NewAgent(t.TempDir(), "adder")
	optimizer := newTestOptimizer(scope, agent, testSpec(t, testScenarios))

	res := optimizer.Optimize(t.Context(), OptimizeOptions{})
	if !res.Success {
		t.Fatalf("got %+v", res)
	}
	if res.TrainingExamples != 2 || res.OptimizerName != "GEPA" {
		t.Fatalf("got %+v", res)
	}
	if res.AssertionMetricWeight != 0.3 {
		t.Fatalf("got %v", res.AssertionMetricWeight)
	}
	if res.BestScore != 1 || res.MetricCalls != 8 {
		t.Fatalf("got %+v", res)
	}
	if res.AvgQualityScore == nil || *res.AvgQualityScore != 0.5 {
		t.Fatalf("got %v", res.AvgQualityScore)
	}
	if *res.AvgAssertionScore != 1 || *res.AvgBlendedScore != 0.65 {
		t.Fatalf("got %v %v", *res.AvgAssertionScore, *res.AvgBlendedScore)
	}

	content, err := os.ReadFile(agent.OptimizedPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "digits only") {
		t.Fatalf("got %s", content)
	}
	if res.SavedPath != agent.OptimizedPath() {
		t.Fatalf("got %v", res.SavedPath)
	}

	var teacher *resolvers.RuntimeParams
	for _, params := range recorder.params {
		if params.Temperature == 1 && params.MaxTokens == 32000 {
			teacher = &params
		}
	}
	if teacher == nil || !strings.HasPrefix(teacher.ModelName, "ollama_chat/") {
		t.Fatalf("got %+v", recorder.params)
	}

	found := false
	for _, span := range spans.Ended() {
		if span.Name() == "optimize" {
			found = true
		}
	}
	if !found {
		t.Fatal("no optimize span")
	}

	// second run is skipped
	res = optimizer.Optimize(t.Context(), OptimizeOptions{})
	if !res.Success || res.Note != "already optimized" {
		t.Fatalf("got %+v", res)
	}
}

func TestOptimizeTeacherOverride(t *testing.T) {
	lm := &lms.Scripted{
		Reply: func(lms.Request) (string, error) {
			return "[[ ## answer ## ]]\n5\n\n[[ ## completed ## ]]", nil
		},
	}
	recorder := new(lmRecorder)
	scope, _ := newTestScope(t, lm, recorder, map[string]string{
		"OPTIX_TEACHER_MODEL": "qwen3:14b",
	})
	optimizer := newTestOptimizer(scope, playbooks.NewAgent(t.TempDir(), "adder"), testSpec(t, testScenarios))
	res := optimizer.Optimize(t.Context(), OptimizeOptions{})
	if !res.Success {
		t.Fatalf("got %+v", res)
	}
	found := false
	for _, params := range recorder.params {
		if params.ModelName == "ollama_chat/qwen3:14b" && params.Temperature == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %+v", recorder.params)
	}
}

func TestOptimizeNoScenarios(t *testing.T) {
	scope, _ := newTestScope(t, new(lms.Scripted), new(lmRecorder), nil)
	optimizer := newTestOptimizer(scope, playbooks.NewAgent(t.TempDir(), "adder"), testSpec(t, ""))
	res := optimizer.Optimize(t.Context(), OptimizeOptions{})
	if res.Success {
		t.Fatal("should fail")
	}
	if res.Error != "no scenarios found in playbook for optimization" {
		t.Fatalf("got %q", res.Error)
	}
	if !errors.Is(res.Err, ErrNoScenarios) {
		t.Fatalf("got %v", res.Err)
	}
	if res.CompletedAt.Before(res.StartedAt) {
		t.Fatal("bad timestamps")
	}
}

type panickyProgram struct{}

func (panickyProgram) BuildProgram(programs.Settings) (programs.Handle, error) {
	panic("build exploded")
}

func (panickyProgram) CompileFlags() resolvers.CompileFlags {
	return resolvers.CompileFlags{
		AllowLocal: true,
	}
}

func TestOptimizePanic(t *testing.T) {
	scope, _ := newTestScope(t, new(lms.Scripted), new(lmRecorder), nil)
	var optimizer *Optimizer
	scope.Call(func(
		newOptimizer NewOptimizer,
	) {
		optimizer = newOptimizer(playbooks.NewAgent(t.TempDir(), "adder"), testSpec(t, testScenarios), panickyProgram{}, nil)
	})
	res := optimizer.Optimize(t.Context(), OptimizeOptions{})
	if res.Success || !strings.Contains(res.Error, "build exploded") {
		t.Fatalf("got %+v", res)
	}
}

type plainProgram struct{}

func (plainProgram) BuildProgram(programs.Settings) (programs.Handle, error) {
	return plainHandle{}, nil
}

func (plainProgram) CompileFlags() resolvers.CompileFlags {
	return resolvers.CompileFlags{
		AllowLocal: true,
	}
}

type plainHandle struct{}

func (plainHandle) Call(context.Context, map[string]any) (programs.Prediction, error) {
	return map[string]any{"answer": "5"}, nil
}

func TestOptimizeUnavailable(t *testing.T) {
	scope, _ := newTestScope(t, new(lms.Scripted), new(lmRecorder), nil)
	var optimizer *Optimizer
	scope.Call(func(
		newOptimizer NewOptimizer,
	) {
		optimizer = newOptimizer(playbooks.NewAgent(t.TempDir(), "adder"), testSpec(t, testScenarios), plainProgram{}, nil)
	})
	res := optimizer.Optimize(t.Context(), OptimizeOptions{})
	if res.Success || !errors.Is(res.Err, ErrOptimizerUnavailable) {
		t.Fatalf("got %+v", res)
	}
}
