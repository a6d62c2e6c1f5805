package assertions

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Result is the outcome of applying a Config to one prediction.
type Result struct {
	Passed       bool           `json:"assertions_passed"`
	Errors       []string       `json:"assertion_errors"`
	Mode         Mode           `json:"assertion_mode"`
	Score        float64        `json:"assertion_score"`
	ChecksTotal  int            `json:"checks_total"`
	ChecksFailed int            `json:"checks_failed"`
	MetricWeight float64        `json:"metric_weight"`
	Fields       map[string]any `json:"-"`
}

// Invalidates reports whether the result must mark the prediction invalid.
func (r Result) Invalidates() bool {
	return r.Mode == ModeFailFast && !r.Passed
}

// Validate applies the rules of cfg to fields in a fixed order:
// required fields, non-empty, enum membership, max length, regex.
func Validate(fields map[string]any, cfg Config) Result {
	ret := Result{
		Passed:       true,
		Errors:       []string{},
		Mode:         ModeFailFast,
		Score:        1,
		MetricWeight: cfg.Weight(),
		Fields:       fields,
	}
	if !cfg.Enabled {
		return ret
	}
	ret.Mode = ParseMode(cfg.Mode)

	fail := func(format string, args ...any) {
		ret.Errors = append(ret.Errors, fmt.Sprintf(format, args...))
		ret.ChecksFailed++
	}

	for _, field := range cfg.RequiredFields {
		ret.ChecksTotal++
		if v, ok := fields[field]; !ok || v == nil {
			fail("Missing required field: %s", field)
		}
	}

	for _, field := range cfg.NonEmpty {
		ret.ChecksTotal++
		if v, ok := fields[field]; ok && !IsNonEmpty(v) {
			fail("Field must be non-empty: %s", field)
		}
	}

	for _, field := range slices.Sorted(maps.Keys(cfg.Enum)) {
		v, ok := fields[field]
		if !ok {
			continue
		}
		ret.ChecksTotal++
		allowed := make([]string, 0, len(cfg.Enum[field]))
		for _, item := range cfg.Enum[field] {
			allowed = append(allowed, fmt.Sprint(item))
		}
		slices.Sort(allowed)
		allowed = slices.Compact(allowed)
		if !slices.Contains(allowed, fmt.Sprint(v)) {
			fail("Field '%s' value '%v' not in allowed set [%s]", field, v, strings.Join(allowed, ", "))
		}
	}

	for _, field := range slices.Sorted(maps.Keys(cfg.MaxLength)) {
		v, ok := fields[field]
		if !ok {
			continue
		}
		ret.ChecksTotal++
		limit := cfg.MaxLength[field]
		if n, ok := length(v); ok && n > limit {
			fail("Field '%s' exceeds max_length=%d (got %d)", field, limit, n)
		}
	}

	for _, field := range slices.Sorted(maps.Keys(cfg.CustomRegex)) {
		v, ok := fields[field]
		if !ok {
			continue
		}
		ret.ChecksTotal++
		str, ok := v.(string)
		if !ok {
			continue
		}
		re, err := regexp.Compile(cfg.CustomRegex[field])
		if err != nil {
			fail("Invalid regex for field '%s'", field)
			continue
		}
		if !re.MatchString(str) {
			fail("Field '%s' did not match required regex pattern", field)
		}
	}

	ret.Passed = len(ret.Errors) == 0
	if ret.ChecksTotal > 0 {
		ret.Score = max(0, 1-float64(ret.ChecksFailed)/float64(ret.ChecksTotal))
	}
	return ret
}

// IsNonEmpty reports whether v carries content: non-blank strings, non-empty collections, any other non-nil value.
func IsNonEmpty(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	if n, ok := collectionLen(v); ok {
		return n > 0
	}
	return true
}

func length(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	return collectionLen(v)
}

func collectionLen(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}
