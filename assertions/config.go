package assertions

import (
	"strings"

	"github.com/reusee/optix/vars"
)

type Mode string

const (
	ModeFailFast Mode = "fail_fast"
	ModeWarnOnly Mode = "warn_only"
)

const DefaultMetricWeight = 0.3

// ParseMode normalizes a configured mode. Unknown or empty values mean fail_fast.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeWarnOnly:
		return ModeWarnOnly
	}
	return ModeFailFast
}

// Config holds output contract rules declared by a playbook.
type Config struct {
	Enabled        bool              `yaml:"enabled" json:"enabled"`
	Mode           string            `yaml:"mode" json:"mode,omitempty"`
	MetricWeight   *float64          `yaml:"metric_weight" json:"metric_weight,omitempty"`
	RequiredFields []string          `yaml:"required_fields" json:"required_fields,omitempty"`
	NonEmpty       []string          `yaml:"non_empty" json:"non_empty,omitempty"`
	Enum           map[string][]any  `yaml:"enum" json:"enum,omitempty"`
	MaxLength      map[string]int    `yaml:"max_length" json:"max_length,omitempty"`
	CustomRegex    map[string]string `yaml:"custom_regex" json:"custom_regex,omitempty"`
}

// Weight is the share of the assertion score in the blended metric, clamped to [0, 1].
func (c Config) Weight() float64 {
	if c.MetricWeight == nil {
		return DefaultMetricWeight
	}
	return vars.Clamp(*c.MetricWeight, 0, 1)
}

func (c Config) NumRules() int {
	return len(c.RequiredFields) +
		len(c.NonEmpty) +
		len(c.Enum) +
		len(c.MaxLength) +
		len(c.CustomRegex)
}
