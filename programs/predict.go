package programs

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/reusee/optix/adapters"
	"github.com/reusee/optix/assertions"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/resolvers"
)

const (
	ComponentPredict = "predict"
	ComponentReAct   = "react"

	ModuleReAct = "react"
)

// Predict is the built-in program: one signature derived from the playbook,
// answered through the configured adapter, with a tool loop when the module is react.
type Predict struct {
	spec *playbooks.Spec
}

var (
	_ Program                 = new(Predict)
	_ PredictionValidator     = new(Predict)
	_ PredictionPostprocessor = new(Predict)
	_ CompileFlagger          = new(Predict)
	_ RuntimeConfigurer       = new(Predict)
	_ OptimizationConfigurer  = new(Predict)
	_ AssertionConfigurer     = new(Predict)
)

func NewPredict(spec *playbooks.Spec) *Predict {
	return &Predict{
		spec: spec,
	}
}

// Signature is the playbook's first task as a model call.
func (p *Predict) Signature() adapters.Signature {
	spec := p.spec
	var task playbooks.Task
	if len(spec.Tasks) > 0 {
		task = spec.Tasks[0]
	}

	inputs := signatureFields(task.Inputs)
	if len(inputs) == 0 {
		inputs = signatureFields(spec.InputFields)
	}
	if len(inputs) == 0 {
		inputs = []adapters.Field{{Name: playbooks.DefaultInputField}}
	}
	outputs := signatureFields(task.Outputs)
	if len(outputs) == 0 {
		outputs = signatureFields(spec.OutputFields)
	}
	if len(outputs) == 0 {
		outputs = []adapters.Field{{Name: playbooks.DefaultOutputField, Type: "str"}}
	}

	return adapters.Signature{
		Instruction: instructionOf(spec, task),
		Inputs:      inputs,
		Outputs:     outputs,
	}
}

func signatureFields(fields []playbooks.Field) (ret []adapters.Field) {
	for _, field := range fields {
		if field.Name == "" {
			continue
		}
		ret = append(ret, adapters.Field{
			Name:        playbooks.ToSnakeCase(field.Name),
			Type:        field.Type,
			Description: field.Description,
		})
	}
	return
}

func instructionOf(spec *playbooks.Spec, task playbooks.Task) string {
	var lines []string
	persona := spec.Persona
	switch {
	case persona.Name != "" && persona.Role != "":
		lines = append(lines, fmt.Sprintf("You are %s, %s.", persona.Name, persona.Role))
	case persona.Role != "":
		lines = append(lines, fmt.Sprintf("You are %s.", persona.Role))
	}
	if persona.Goal != "" {
		lines = append(lines, "Goal: "+persona.Goal)
	}
	if len(persona.Traits) > 0 {
		lines = append(lines, "Traits: "+strings.Join(persona.Traits, ", "))
	}
	if text := strings.TrimSpace(task.Instruction); text != "" {
		lines = append(lines, text)
	} else if text := strings.TrimSpace(task.Description); text != "" {
		lines = append(lines, text)
	}
	if len(lines) == 0 {
		return "Answer the query."
	}
	return strings.Join(lines, "\n")
}

func (p *Predict) BuildProgram(settings Settings) (Handle, error) {
	if settings.LM == nil {
		return nil, wrap(ErrNoLM)
	}
	if settings.Spec == nil {
		settings.Spec = p.spec
	}
	adapter := settings.Adapter
	if adapter == nil {
		var err error
		adapter, err = adapters.New(resolvers.AdapterChat, adapters.Options{})
		if err != nil {
			return nil, err
		}
	}

	sig := p.Signature()
	components := map[string]string{
		ComponentPredict: sig.Instruction,
	}
	react := p.spec.ModuleName() == ModuleReAct && len(settings.Tools) > 0
	if react {
		components[ComponentReAct] = defaultReActInstruction(sig)
	}

	return &predictHandle{
		settings:   settings,
		adapter:    adapter,
		sig:        sig,
		react:      react,
		components: components,
	}, nil
}

func (p *Predict) ValidatePredictionResult(fields map[string]any) assertions.Result {
	return assertions.Validate(fields, p.spec.Program.Assertions)
}

func (p *Predict) PostprocessPrediction(pred Prediction, result map[string]any, outputFields []string) (map[string]any, error) {
	return assertions.Coerce(result, outputFields, p.spec.OutputTypes(), p.spec.Program.Signature.OutputMode), nil
}

// CompileFlags allows local models unless the playbook names a cloud provider.
func (p *Predict) CompileFlags() resolvers.CompileFlags {
	lm := p.spec.LM()
	provider := strings.ToLower(strings.TrimSpace(lm.Provider))
	mode := resolvers.ParseRuntimeMode(lm.RuntimeMode)
	return resolvers.CompileFlags{
		AllowLocal:  provider == "" || resolvers.IsLocalProvider(provider) || mode == resolvers.RuntimeLocal,
		RuntimeMode: lm.RuntimeMode,
	}
}

func (p *Predict) RuntimeConfig() resolvers.RuntimeConfig {
	return resolvers.RuntimeConfig{
		Module: p.spec.ModuleName(),
	}
}

func (p *Predict) OptimizationConfig() map[string]any {
	if len(p.spec.Program.GEPA) == 0 {
		return nil
	}
	return map[string]any{
		"gepa": maps.Clone(p.spec.Program.GEPA),
	}
}

func (p *Predict) AssertionConfig() assertions.Config {
	return p.spec.Program.Assertions
}

type predictHandle struct {
	settings   Settings
	adapter    adapters.Adapter
	sig        adapters.Signature
	react      bool
	components map[string]string
}

var (
	_ Mutable = new(predictHandle)
	_ Loader  = new(predictHandle)
	_ Saver   = new(predictHandle)
)

func (h *predictHandle) Call(ctx context.Context, inputs map[string]any) (Prediction, error) {
	sig := h.sig
	sig.Instruction = h.components[ComponentPredict]
	if h.react {
		return h.runReAct(ctx, sig, inputs)
	}
	fields, err := h.adapter.Call(ctx, h.settings.LM, sig, inputs)
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (h *predictHandle) Components() map[string]string {
	return maps.Clone(h.components)
}

func (h *predictHandle) WithComponents(components map[string]string) (Handle, error) {
	ret := *h
	ret.components = maps.Clone(h.components)
	for name, text := range components {
		if _, ok := ret.components[name]; !ok {
			return nil, wrap(fmt.Errorf("unknown component: %s", name))
		}
		ret.components[name] = text
	}
	return &ret, nil
}

type savedState struct {
	Program    string            `json:"program"`
	Components map[string]string `json:"components"`
}

func (h *predictHandle) Save(path string) error {
	content, err := json.MarshalIndent(savedState{
		Program:    "predict",
		Components: h.components,
	}, "", "  ")
	if err != nil {
		return wrap(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return wrap(err)
	}
	return nil
}

// Load replaces components with saved texts. Components the handle does not have are ignored.
func (h *predictHandle) Load(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return wrap(err)
	}
	var state savedState
	if err := json.Unmarshal(content, &state); err != nil {
		return wrap(fmt.Errorf("decode %s: %w", path, err))
	}
	for name, text := range state.Components {
		if _, ok := h.components[name]; ok && text != "" {
			h.components[name] = text
		}
	}
	return nil
}
