package gepa

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
	"github.com/reusee/optix/lms"
)

// InitParams are the parameter names NewEngine accepts.
var InitParams = []string{
	"metric",
	"auto",
	"reflection_lm",
	"candidate_selection_strategy",
	"skip_perfect_score",
	"reflection_minibatch_size",
	"perfect_score",
	"use_merge",
	"max_merge_invocations",
	"failure_score",
	"seed",
	"num_threads",
}

// CompileParams are the parameter names Compile accepts.
var CompileParams = []string{
	"student",
	"trainset",
	"valset",
	"max_full_evals",
	"max_metric_calls",
	"track_stats",
}

const (
	AutoLight  = "light"
	AutoMedium = "medium"
	AutoHeavy  = "heavy"

	SelectPareto      = "pareto"
	SelectCurrentBest = "current_best"
)

// full valset evaluations per auto level
var autoBudgets = map[string]int{
	AutoLight:  6,
	AutoMedium: 12,
	AutoHeavy:  18,
}

type Config struct {
	Metric       Metric `json:"-" validate:"required"`
	ReflectionLM lms.LM `json:"-" validate:"-"`

	Auto                       string  `json:"auto" validate:"omitempty,oneof=light medium heavy"`
	CandidateSelectionStrategy string  `json:"candidate_selection_strategy" validate:"omitempty,oneof=pareto current_best"`
	SkipPerfectScore           bool    `json:"skip_perfect_score"`
	ReflectionMinibatchSize    int     `json:"reflection_minibatch_size" validate:"gte=0"`
	PerfectScore               float64 `json:"perfect_score"`
	UseMerge                   bool    `json:"use_merge"`
	MaxMergeInvocations        int     `json:"max_merge_invocations" validate:"gte=0"`
	FailureScore               float64 `json:"failure_score"`
	Seed                       uint64  `json:"seed"`
	NumThreads                 int     `json:"num_threads" validate:"gte=0"`

	// ReflectionTokenBudget bounds the reflective dataset shown to the reflection model.
	ReflectionTokenBudget int `json:"-" validate:"gte=0"`
}

const (
	defaultMinibatchSize = 3
	defaultTokenBudget   = 8000
)

func DefaultConfig() Config {
	return Config{
		Auto:                       AutoLight,
		CandidateSelectionStrategy: SelectPareto,
		SkipPerfectScore:           true,
		ReflectionMinibatchSize:    defaultMinibatchSize,
		PerfectScore:               1,
		UseMerge:                   true,
		MaxMergeInvocations:        5,
		ReflectionTokenBudget:      defaultTokenBudget,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if c.ReflectionLM == nil {
		return wrap(fmt.Errorf("%w: no reflection model", ErrConfig))
	}
	if err := validate.Struct(c); err != nil {
		return wrap(fmt.Errorf("%w: %w", ErrConfig, err))
	}
	return nil
}

// ConfigFromParams overlays init params on the defaults.
func ConfigFromParams(params map[string]any) (ret Config, err error) {
	ret = DefaultConfig()
	rest := maps.Clone(params)
	if v, ok := rest["metric"]; ok {
		metric, ok := v.(Metric)
		if !ok {
			return ret, wrap(fmt.Errorf("%w: metric is %T", ErrConfig, v))
		}
		ret.Metric = metric
		delete(rest, "metric")
	}
	if v, ok := rest["reflection_lm"]; ok {
		lm, ok := v.(lms.LM)
		if !ok {
			return ret, wrap(fmt.Errorf("%w: reflection_lm is %T", ErrConfig, v))
		}
		ret.ReflectionLM = lm
		delete(rest, "reflection_lm")
	}
	bs, err := json.Marshal(rest)
	if err != nil {
		return ret, wrap(fmt.Errorf("%w: %w", ErrConfig, err))
	}
	if err := json.Unmarshal(bs, &ret); err != nil {
		return ret, wrap(fmt.Errorf("%w: %w", ErrConfig, err))
	}
	return ret, ret.Validate()
}

// Budget is the number of metric calls a compile may spend.
func Budget(auto string, maxFullEvals int, maxMetricCalls int, valsetSize int) int {
	if maxMetricCalls > 0 {
		return maxMetricCalls
	}
	if maxFullEvals > 0 {
		return maxFullEvals * valsetSize
	}
	evals, ok := autoBudgets[auto]
	if !ok {
		evals = autoBudgets[AutoLight]
	}
	return evals * valsetSize
}
