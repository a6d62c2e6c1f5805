package resolvers

import (
	"fmt"
	"strings"

	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/vars"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048

	DefaultLocalModel        = "llama3.1:8b"
	DefaultCloudTaskModel    = "gemini-2.5-flash-lite"
	DefaultCloudTeacherModel = "gemini-2.5-flash"

	DefaultOllamaBaseURL = "http://127.0.0.1:11434"
)

// Defaults are purpose-specific model names configured in the settings file.
type Defaults struct {
	TaskModel         string
	TeacherModel      string
	CloudTaskModel    string
	CloudTeacherModel string
	OllamaBaseURL     string
}

// Resolver merges playbook, program and operator choices into RuntimeParams.
type Resolver struct {
	Env      configs.Env
	APIKeys  map[string]string
	Defaults Defaults
}

// Resolve is Resolver.Resolve with nothing but the environment.
func Resolve(
	spec *playbooks.Spec,
	overrides Overrides,
	env configs.Env,
	purpose Purpose,
	flags CompileFlags,
) (RuntimeParams, error) {
	return Resolver{Env: env}.Resolve(spec, overrides, purpose, flags)
}

func (r Resolver) env(key string) string {
	if r.Env == nil {
		return ""
	}
	return strings.TrimSpace(r.Env(key))
}

func (r Resolver) localDefault(purpose Purpose) string {
	if purpose == PurposeTeacher {
		return vars.FirstNonZero(r.env("OPTIX_TEACHER_MODEL"), r.Defaults.TeacherModel, DefaultLocalModel)
	}
	return vars.FirstNonZero(r.env("OPTIX_TASK_MODEL"), r.Defaults.TaskModel, DefaultLocalModel)
}

func (r Resolver) cloudDefault(purpose Purpose) string {
	if purpose == PurposeTeacher {
		return vars.FirstNonZero(r.env("OPTIX_CLOUD_TEACHER_MODEL"), r.Defaults.CloudTeacherModel, DefaultCloudTeacherModel)
	}
	return vars.FirstNonZero(r.env("OPTIX_CLOUD_TASK_MODEL"), r.Defaults.CloudTaskModel, DefaultCloudTaskModel)
}

// RuntimeModeOf resolves the effective runtime mode.
// Command line flags win; the program's compiled mode applies when they say auto, then the playbook.
func RuntimeModeOf(spec *playbooks.Spec, overrides Overrides, flags CompileFlags) (RuntimeMode, error) {
	if overrides.Local && overrides.Cloud {
		return "", wrap(ErrConflictingRuntimeFlags)
	}
	switch {
	case overrides.Local:
		return RuntimeLocal, nil
	case overrides.Cloud:
		return RuntimeCloud, nil
	}
	if mode := ParseRuntimeMode(flags.RuntimeMode); mode != RuntimeAuto {
		return mode, nil
	}
	return ParseRuntimeMode(spec.LM().RuntimeMode), nil
}

// Resolve computes the runtime parameters for purpose.
// Resolution is a pure function of its inputs, so resolving twice yields equal params.
func (r Resolver) Resolve(
	spec *playbooks.Spec,
	overrides Overrides,
	purpose Purpose,
	flags CompileFlags,
) (ret RuntimeParams, err error) {

	mode, err := RuntimeModeOf(spec, overrides, flags)
	if err != nil {
		return ret, err
	}

	lm := spec.LM()
	model := strings.TrimSpace(lm.Model)
	hasPlaybookProvider := strings.TrimSpace(lm.Provider) != ""
	provider := vars.FirstNonZero(normalizeProvider(lm.Provider), ProviderOllama)

	providerOverride := normalizeProvider(vars.FirstNonZero(overrides.Provider, flags.ProviderOverride))
	if providerOverride != "" {
		provider = providerOverride
	}

	// provider implied by an overridden model name
	var impliedProvider string
	modelOverride := strings.TrimSpace(vars.FirstNonZero(overrides.Model, flags.ModelOverride))
	if modelOverride != "" {
		model = modelOverride
		switch {
		case strings.HasPrefix(model, "ollama_chat/"), strings.HasPrefix(model, "ollama/"):
			impliedProvider = ProviderOllama
		case strings.HasPrefix(model, "gemini/"), strings.HasPrefix(model, "models/"):
			impliedProvider = ProviderGoogleGenAI
		}
		if impliedProvider != "" {
			provider = impliedProvider
		}
	}

	switch mode {

	case RuntimeLocal:
		if !IsLocalProvider(provider) {
			if providerOverride != "" || impliedProvider != "" {
				return ret, wrap(fmt.Errorf("%w: local mode with cloud provider %q", ErrInvalidRuntimeCombination, provider))
			}
			// the playbook model belongs to the cloud provider
			provider = ProviderOllama
			if modelOverride == "" {
				model = ""
			}
		}

	case RuntimeCloud:
		if providerOverride == "" && !hasPlaybookProvider && IsLocalProvider(provider) {
			provider = ProviderGoogleGenAI
			if model == "" {
				model = r.cloudDefault(purpose)
			}
		}

	}

	if model == "" {
		if IsLocalProvider(provider) {
			model = r.localDefault(purpose)
		} else {
			model = r.cloudDefault(purpose)
		}
	}

	if mode == RuntimeCloud && IsLocalProvider(provider) {
		return ret, wrap(fmt.Errorf("%w: cloud mode cannot use local provider %q, use local mode or choose a cloud provider", ErrInvalidRuntimeCombination, provider))
	}

	if IsLocalProvider(provider) && !flags.AllowLocal {
		return ret, wrap(ErrLocalProviderNotAuthorized)
	}

	ret.Provider = provider
	ret.Temperature = DefaultTemperature
	if lm.Temperature != nil {
		ret.Temperature = *lm.Temperature
	}
	if spec.Reasoning.Temperature != nil {
		ret.Temperature = *spec.Reasoning.Temperature
	}
	ret.MaxTokens = DefaultMaxTokens
	if lm.MaxTokens != nil {
		ret.MaxTokens = *lm.MaxTokens
	}
	if spec.Reasoning.MaxTokens != nil {
		ret.MaxTokens = *spec.Reasoning.MaxTokens
	}

	if IsLocalProvider(provider) {
		ret.Provider = ProviderOllama
		ret.ModelName = LocalModelName(model)
		ret.BaseURL = vars.FirstNonZero(
			strings.TrimSpace(lm.Gateway),
			r.env("OLLAMA_BASE_URL"),
			r.Defaults.OllamaBaseURL,
			DefaultOllamaBaseURL,
		)
		return ret, nil
	}

	ret.APIKey, err = r.credential(provider)
	if err != nil {
		return ret, err
	}
	ret.BaseURL = strings.TrimSpace(lm.Gateway)

	if provider == ProviderGoogleGenAI {
		ret.ModelName = geminiModelName(model)
	} else if strings.Contains(model, "/") {
		ret.ModelName = model
	} else {
		ret.ModelName = provider + "/" + model
	}

	return ret, nil
}

func geminiModelName(model string) string {
	switch {
	case strings.HasPrefix(model, "gemini/"):
		return model
	case strings.HasPrefix(model, "models/"):
		return "gemini/" + strings.TrimPrefix(model, "models/")
	case strings.Contains(model, "/"):
		return "gemini/" + model[strings.LastIndex(model, "/")+1:]
	}
	return "gemini/" + model
}
