package resolvers

import "strings"

// RuntimeParams are the concrete language model parameters for one run. They are resolved fresh for every run.
type RuntimeParams struct {
	ModelName   string  `json:"model_name"`
	APIKey      string  `json:"-"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	BaseURL     string  `json:"base_url,omitempty"`
}

// Model returns the model name without the routing prefix.
func (r RuntimeParams) Model() string {
	_, name, ok := strings.Cut(r.ModelName, "/")
	if !ok {
		return r.ModelName
	}
	return name
}

func (r RuntimeParams) IsLocal() bool {
	return IsLocalProvider(r.Provider)
}

type Purpose string

const (
	PurposeTask    Purpose = "task"
	PurposeTeacher Purpose = "teacher"
)

type RuntimeMode string

const (
	RuntimeAuto  RuntimeMode = "auto"
	RuntimeLocal RuntimeMode = "local"
	RuntimeCloud RuntimeMode = "cloud"
)

func ParseRuntimeMode(s string) RuntimeMode {
	switch mode := RuntimeMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case RuntimeLocal, RuntimeCloud:
		return mode
	}
	return RuntimeAuto
}

// Overrides are explicit operator choices, usually from the command line.
type Overrides struct {
	Model    string
	Provider string
	Local    bool
	Cloud    bool
}

// CompileFlags are baked into a program when it is generated.
type CompileFlags struct {
	AllowLocal       bool
	RuntimeMode      string
	ProviderOverride string
	ModelOverride    string
}

const (
	ProviderOllama      = "ollama"
	ProviderGoogleGenAI = "google-genai"

	localModelPrefix = "ollama_chat/"
)

func IsLocalProvider(provider string) bool {
	switch provider {
	case ProviderOllama, "local":
		return true
	}
	return false
}

func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	switch provider {
	case "google", "gemini":
		return ProviderGoogleGenAI
	case "local":
		return ProviderOllama
	}
	return provider
}

// LocalModelName prefixes a model name for the local chat endpoint.
func LocalModelName(model string) string {
	if strings.HasPrefix(model, localModelPrefix) {
		return model
	}
	model = strings.TrimPrefix(model, "ollama/")
	return localModelPrefix + model
}
