package playbooks

import "github.com/reusee/optix/assertions"

// Document is a playbook file. Bare files without the envelope decode directly into Spec.
type Document struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       *Spec    `yaml:"spec"`
}

type Metadata struct {
	Name        string `yaml:"name"`
	ID          string `yaml:"id"`
	Namespace   string `yaml:"namespace"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// Spec is the declarative description of an agent. It is never mutated after loading; see Derive.
type Spec struct {
	Metadata              Metadata              `yaml:"metadata"`
	LanguageModel         LanguageModel         `yaml:"language_model"`
	LLM                   LanguageModel         `yaml:"llm"`
	Persona               Persona               `yaml:"persona"`
	Tasks                 []Task                `yaml:"tasks"`
	Program               ProgramBlock          `yaml:"dspy"`
	Optimization          Optimization          `yaml:"optimization"`
	RAG                   Retrieval             `yaml:"rag"`
	Retrieval             Retrieval             `yaml:"retrieval"`
	Memory                Memory                `yaml:"memory"`
	FeatureSpecifications FeatureSpecifications `yaml:"feature_specifications"`
	Scenarios             []Scenario            `yaml:"scenarios"`
	InputFields           []Field               `yaml:"input_fields"`
	OutputFields          []Field               `yaml:"output_fields"`
	Reasoning             Reasoning             `yaml:"reasoning"`
}

// LM returns the language model block, accepting the legacy llm key.
func (s *Spec) LM() LanguageModel {
	if s.LanguageModel != (LanguageModel{}) {
		return s.LanguageModel
	}
	return s.LLM
}

type LanguageModel struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
	RuntimeMode string   `yaml:"runtime_mode"`
	Gateway     string   `yaml:"gateway"`
}

type Persona struct {
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Traits    []string `yaml:"traits"`
	Backstory string   `yaml:"backstory"`
}

type Task struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Instruction string  `yaml:"instruction"`
	Inputs      []Field `yaml:"inputs"`
	Outputs     []Field `yaml:"outputs"`
}

type Field struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// ProgramBlock configures the generated program: its module kind, adapter, tools and output contract.
type ProgramBlock struct {
	Module       string            `yaml:"module"`
	ModuleParams map[string]any    `yaml:"module_params"`
	Adapter      map[string]any    `yaml:"adapter"`
	Modules      []ModuleOverride  `yaml:"modules"`
	Tools        Tools             `yaml:"tools"`
	RLM          map[string]any    `yaml:"rlm"`
	Assertions   assertions.Config `yaml:"assertions"`
	Signature    Signature         `yaml:"signature"`
	GEPA         map[string]any    `yaml:"gepa"`
}

type ModuleOverride struct {
	Name    string         `yaml:"name"`
	Adapter map[string]any `yaml:"adapter"`
}

type Tools struct {
	Mode     string       `yaml:"mode"`
	Builtin  []string     `yaml:"builtin"`
	Trace    ToolTrace    `yaml:"trace"`
	Catalog  CatalogBlock `yaml:"stackone"`
	MaxIters int          `yaml:"max_iters"`
}

type ToolTrace struct {
	Enabled bool `yaml:"enabled"`
}

// CatalogBlock configures a remote tool catalog.
type CatalogBlock struct {
	Enabled            *bool    `yaml:"enabled"`
	APIKeyEnv          string   `yaml:"api_key_env"`
	AccountIDs         []string `yaml:"account_ids"`
	AccountIDsEnv      string   `yaml:"account_ids_env"`
	Providers          []string `yaml:"providers"`
	Actions            []string `yaml:"actions"`
	FallbackUnfiltered *bool    `yaml:"fallback_unfiltered"`
	BaseURL            string   `yaml:"base_url"`
	DiscoveryMode      bool     `yaml:"discovery_mode"`
}

type Signature struct {
	OutputMode string `yaml:"output_mode"`
}

type Optimization struct {
	Optimizer Optimizer `yaml:"optimizer"`
}

type Optimizer struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

type Retrieval struct {
	Enabled bool `yaml:"enabled"`
	TopK    int  `yaml:"top_k"`
}

type Memory struct {
	Enabled     bool            `yaml:"enabled"`
	AgentID     string          `yaml:"agent_id"`
	RecallLimit int             `yaml:"recall_limit"`
	ShortTerm   ShortTermMemory `yaml:"short_term"`
	LongTerm    LongTermMemory  `yaml:"long_term"`
}

type ShortTermMemory struct {
	WindowSize int `yaml:"window_size"`
}

type LongTermMemory struct {
	Search MemorySearch `yaml:"search"`
}

type MemorySearch struct {
	DefaultLimit           int      `yaml:"default_limit"`
	MinSimilarityThreshold *float64 `yaml:"min_similarity_threshold"`
}

type FeatureSpecifications struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

type Scenario struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	Input          map[string]any `yaml:"input"`
	ExpectedOutput map[string]any `yaml:"expected_output"`
}

type Reasoning struct {
	Method      string   `yaml:"method"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}
