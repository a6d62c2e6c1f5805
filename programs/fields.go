package programs

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/reusee/optix/playbooks"
)

// FieldGetter predictions expose fields by name.
type FieldGetter interface {
	Get(name string) (any, bool)
}

// Fields extracts the named fields from a prediction.
// Maps, FieldGetter implementations and structs (matched by json or yaml tag, or by snake_case field name) are understood.
func Fields(pred Prediction, names []string) map[string]any {
	ret := make(map[string]any)
	switch pred := pred.(type) {
	case nil:
		return ret
	case map[string]any:
		for _, name := range names {
			if v, ok := pred[name]; ok {
				ret[name] = v
			}
		}
		return ret
	case map[string]string:
		for _, name := range names {
			if v, ok := pred[name]; ok {
				ret[name] = v
			}
		}
		return ret
	case FieldGetter:
		for _, name := range names {
			if v, ok := pred.Get(name); ok {
				ret[name] = v
			}
		}
		return ret
	}

	v := reflect.ValueOf(pred)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ret
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return ret
	}
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		for _, want := range names {
			if want == name {
				ret[name] = v.Field(i).Interface()
				break
			}
		}
	}
	return ret
}

func fieldName(field reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		if tag, _, _ := strings.Cut(field.Tag.Get(key), ","); tag != "" && tag != "-" {
			return tag
		}
	}
	return camelToSnake(field.Name)
}

func camelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && isUpper(r) && (!isUpper(runes[i-1]) || i+1 < len(runes) && !isUpper(runes[i+1])) {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return playbooks.ToSnakeCase(b.String())
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// ResultFields is Fields with a fallback for predictions of unknown shape.
func ResultFields(pred Prediction, names []string) map[string]any {
	ret := Fields(pred, names)
	if len(ret) == 0 {
		ret["response"] = fmt.Sprint(pred)
	}
	return ret
}
