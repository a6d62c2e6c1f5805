package playbooks

import (
	"strings"

	"github.com/reusee/optix/vars"
)

const (
	DefaultInputField  = "query"
	DefaultOutputField = "response"
)

func ToSnakeCase(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ToLower(s)
}

// IOFields returns the primary input field and the declared output fields.
// The first task wins when it declares outputs; otherwise spec-level fields are consulted.
func (s *Spec) IOFields() (input string, outputs []string) {
	input = DefaultInputField
	outputs = []string{DefaultOutputField}

	if len(s.Tasks) > 0 {
		task := s.Tasks[0]
		if len(task.Inputs) > 0 && task.Inputs[0].Name != "" {
			input = ToSnakeCase(task.Inputs[0].Name)
		}
		if len(task.Outputs) > 0 {
			if names := fieldNames(task.Outputs); len(names) > 0 {
				outputs = names
			}
			return
		}
	}

	if len(s.InputFields) > 0 && s.InputFields[0].Name != "" {
		input = ToSnakeCase(s.InputFields[0].Name)
	}
	if names := fieldNames(s.OutputFields); len(names) > 0 {
		outputs = names
	}
	return
}

func fieldNames(fields []Field) (ret []string) {
	for _, field := range fields {
		if field.Name == "" {
			continue
		}
		ret = append(ret, ToSnakeCase(field.Name))
	}
	return
}

// OutputTypes maps declared output fields to their type hints.
func (s *Spec) OutputTypes() map[string]string {
	fields := s.OutputFields
	if len(s.Tasks) > 0 && len(s.Tasks[0].Outputs) > 0 {
		fields = s.Tasks[0].Outputs
	}
	ret := make(map[string]string)
	for _, field := range fields {
		if field.Name == "" || field.Type == "" {
			continue
		}
		ret[ToSnakeCase(field.Name)] = field.Type
	}
	return ret
}

// NumDeclaredOutputs counts outputs declared at spec level or on the first task, whichever is larger.
func (s *Spec) NumDeclaredOutputs() int {
	n := len(s.OutputFields)
	if len(s.Tasks) > 0 {
		n = max(n, len(s.Tasks[0].Outputs))
	}
	return n
}

func (s *Spec) RetrievalEnabled() bool {
	return s.RAG.Enabled || s.Retrieval.Enabled
}

// RetrievalTopK returns top_k of the rag block when present, else of the retrieval block. Zero means unset.
func (s *Spec) RetrievalTopK() int {
	if s.RAG != (Retrieval{}) {
		return s.RAG.TopK
	}
	return s.Retrieval.TopK
}

// MemoryLimits returns the recall limit and conversation window, each clamped to [1, 10].
func (s *Spec) MemoryLimits() (recall int, window int) {
	recall = vars.FirstNonZero(s.Memory.LongTerm.Search.DefaultLimit, s.Memory.RecallLimit, 3)
	window = vars.FirstNonZero(s.Memory.ShortTerm.WindowSize, 3)
	return vars.Clamp(recall, 1, 10), vars.Clamp(window, 1, 10)
}

// MinSimilarity is the recall similarity threshold, 0.3 when unset.
func (s *Spec) MinSimilarity() float64 {
	if p := s.Memory.LongTerm.Search.MinSimilarityThreshold; p != nil {
		return *p
	}
	return 0.3
}

// AllScenarios returns feature_specifications.scenarios, or the top-level scenarios when absent.
func (s *Spec) AllScenarios() []Scenario {
	if len(s.FeatureSpecifications.Scenarios) > 0 {
		return s.FeatureSpecifications.Scenarios
	}
	return s.Scenarios
}

// ToolsMode returns the normalized dspy.tools.mode, "none" when unset.
func (s *Spec) ToolsMode() string {
	mode := strings.ToLower(strings.TrimSpace(s.Program.Tools.Mode))
	if mode == "" {
		return "none"
	}
	return mode
}

func (s *Spec) ModuleName() string {
	return strings.ToLower(strings.TrimSpace(s.Program.Module))
}

// Name returns the agent name from metadata, falling back to the persona.
func (s *Spec) Name() string {
	if s.Metadata.Name != "" {
		return s.Metadata.Name
	}
	if s.Metadata.ID != "" {
		return s.Metadata.ID
	}
	return s.Persona.Name
}
