package assertions

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"

	"github.com/reusee/optix/vars"
)

const OutputModeStructured = "structured"

// Coerce converts declared output fields to their declared types when outputMode is structured.
// Values that do not parse are kept as they are.
func Coerce(fields map[string]any, outputFields []string, types map[string]string, outputMode string) map[string]any {
	if !strings.EqualFold(strings.TrimSpace(outputMode), OutputModeStructured) {
		return fields
	}
	ret := maps.Clone(fields)
	if ret == nil {
		ret = make(map[string]any)
	}
	for _, field := range outputFields {
		v, ok := ret[field]
		if !ok {
			continue
		}
		ret[field] = CoerceValue(v, types[field])
	}
	return ret
}

// CoerceValue converts v according to a type hint such as int, float, bool, list[str], dict, Optional[int] or int | str.
func CoerceValue(v any, hint string) any {
	if v == nil {
		return nil
	}
	ret, _ := coerce(v, strings.TrimSpace(hint))
	return ret
}

// coerce reports whether a conversion happened.
func coerce(v any, hint string) (any, bool) {
	if hint == "" || hint == "str" || hint == "Any" {
		return v, false
	}

	if strings.HasPrefix(hint, "Optional[") && strings.HasSuffix(hint, "]") {
		return coerce(v, strings.TrimSpace(hint[len("Optional["):len(hint)-1]))
	}

	if strings.Contains(hint, "|") {
		for _, candidate := range strings.Split(hint, "|") {
			if ret, ok := coerce(v, strings.TrimSpace(candidate)); ok {
				return ret, true
			}
		}
		return v, false
	}

	switch {

	case hint == "int":
		switch v := v.(type) {
		case int:
			return v, false
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i, true
			}
		}

	case hint == "float":
		switch v := v.(type) {
		case float64:
			return v, false
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}

	case hint == "bool":
		switch v := v.(type) {
		case bool:
			return v, false
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes", "y", "false", "0", "no", "n":
				return vars.StrToBool(v), true
			}
		}

	case hint == "list" || strings.HasPrefix(hint, "list["):
		switch v := v.(type) {
		case []any:
			return v, false
		case string:
			var parsed any
			if err := json.Unmarshal([]byte(stripCodeFences(v)), &parsed); err == nil {
				switch parsed := parsed.(type) {
				case []any:
					return parsed, true
				case map[string]any:
					return []any{parsed}, true
				}
			}
		}

	case hint == "dict" || strings.HasPrefix(hint, "dict["):
		switch v := v.(type) {
		case map[string]any:
			return v, false
		case string:
			var parsed map[string]any
			if err := json.Unmarshal([]byte(stripCodeFences(v)), &parsed); err == nil && parsed != nil {
				return parsed, true
			}
		}

	}

	return v, false
}

func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.Trim(cleaned, "`"))
		if _, rest, ok := strings.Cut(cleaned, "\n"); ok {
			cleaned = rest
		}
	}
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
