package runners

import (
	"maps"
	"strings"

	"github.com/reusee/optix/assertions"
	"github.com/reusee/optix/toolguards"
)

type OptimizationStatus struct {
	OptimizationAvailable bool `json:"optimization_available"`
	UsedPreOptimized      bool `json:"used_pre_optimized"`
	OptimizationUsed      bool `json:"optimization_used"`
}

type Result struct {
	Fields        map[string]any     `json:"fields"`
	IsValid       bool               `json:"is_valid"`
	Assertion     *assertions.Result `json:"assertion,omitempty"`
	MemoryEnabled bool               `json:"memory_enabled"`
	Optimization  OptimizationStatus `json:"optimization"`
	Trace         []toolguards.Event `json:"trace,omitempty"`
	SessionID     string             `json:"session_id"`
	Model         string             `json:"model,omitempty"`
	Phase         Phase              `json:"phase"`
}

// Map flattens the result into the output fields plus underscore-prefixed status keys.
func (r Result) Map() map[string]any {
	ret := maps.Clone(r.Fields)
	if ret == nil {
		ret = make(map[string]any)
	}
	ret["is_valid"] = r.IsValid
	if a := r.Assertion; a != nil {
		errs := a.Errors
		if errs == nil {
			errs = []string{}
		}
		ret["_assertion_errors"] = errs
		ret["_assertion_mode"] = string(a.Mode)
		ret["_assertions_passed"] = a.Passed
		ret["_assertion_score"] = a.Score
		ret["_assertion_checks_total"] = a.ChecksTotal
		ret["_assertion_checks_failed"] = a.ChecksFailed
	}
	ret["_memory_enabled"] = r.MemoryEnabled
	ret["_optimization_status"] = map[string]any{
		"optimization_available": r.Optimization.OptimizationAvailable,
		"used_pre_optimized":     r.Optimization.UsedPreOptimized,
		"optimization_used":      r.Optimization.OptimizationUsed,
	}
	return ret
}

// hasContent reports whether any field is a non-blank string or a non-nil value of another type.
func hasContent(fields map[string]any) bool {
	for _, v := range fields {
		switch v := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				return true
			}
		default:
			return true
		}
	}
	return false
}
