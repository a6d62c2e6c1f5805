package optimizers

import (
	"maps"
	"slices"

	"github.com/reusee/optix/gepa"
	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/programs"
)

// Engine parameters are assembled here and nowhere else.
// Values are forwarded only under names the engine declares, and nil values are dropped.

const defaultAuto = gepa.AutoLight

func initParams(cfg map[string]any, metric gepa.Metric, reflection lms.LM) map[string]any {
	candidates := map[string]any{
		"metric":                       metric,
		"auto":                         valueOr(cfg, "auto", defaultAuto),
		"reflection_lm":                reflection,
		"candidate_selection_strategy": cfg["candidate_selection_strategy"],
		"skip_perfect_score":           valueOr(cfg, "skip_perfect_score", true),
		"reflection_minibatch_size":    cfg["reflection_minibatch_size"],
		"perfect_score":                valueOr(cfg, "perfect_score", 1.0),
		"use_merge":                    valueOr(cfg, "use_merge", true),
		"max_merge_invocations":        valueOr(cfg, "max_merge_invocations", 5),
		"failure_score":                valueOr(cfg, "failure_score", 0.0),
		"seed":                         valueOr(cfg, "seed", 0),
		"num_threads":                  cfg["num_threads"],
	}
	// auto competes with the explicit budgets
	if cfg["max_full_evals"] != nil || cfg["max_metric_calls"] != nil {
		delete(candidates, "auto")
	}
	return forward(candidates, gepa.InitParams)
}

func compileParams(cfg map[string]any, student programs.Handle, examples []gepa.Example) map[string]any {
	return forward(map[string]any{
		"student":          student,
		"trainset":         examples,
		"valset":           examples,
		"max_full_evals":   asInt(cfg["max_full_evals"]),
		"max_metric_calls": asInt(cfg["max_metric_calls"]),
		"track_stats":      cfg["track_stats"],
	}, gepa.CompileParams)
}

func forward(candidates map[string]any, declared []string) map[string]any {
	ret := make(map[string]any)
	for _, key := range slices.Sorted(maps.Keys(candidates)) {
		value := candidates[key]
		if value == nil || !slices.Contains(declared, key) {
			continue
		}
		ret[key] = value
	}
	return ret
}

func valueOr(cfg map[string]any, key string, def any) any {
	if v, ok := cfg[key]; ok && v != nil {
		return v
	}
	return def
}

// asInt normalizes decoded numbers. Non-numbers pass through for the engine to reject.
func asInt(v any) any {
	switch v := v.(type) {
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return v
}

// gepaConfig merges optimization.optimizer.params under the program's own gepa settings.
func gepaConfig(base map[string]any, program map[string]any) map[string]any {
	ret := maps.Clone(base)
	if ret == nil {
		ret = make(map[string]any)
	}
	if gepaCfg, ok := program["gepa"].(map[string]any); ok {
		maps.Copy(ret, gepaCfg)
	}
	return ret
}

func stringParam(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}
