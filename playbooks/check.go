package playbooks

import (
	_ "embed"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSrc string

var checkLock sync.Mutex

var getSchema = sync.OnceValues(func() (cue.Value, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := value.Err(); err != nil {
		return cue.Value{}, err
	}
	return value.LookupPath(cue.ParsePath("#Spec")), nil
})

// Check validates the runtime-facing shape of a decoded playbook spec.
// Structural validation of the full document is done by the playbook compiler.
func Check(raw map[string]any) error {
	checkLock.Lock()
	defer checkLock.Unlock()
	schema, err := getSchema()
	if err != nil {
		return wrap(err)
	}
	value := schema.Context().Encode(dropNulls(raw))
	if err := value.Err(); err != nil {
		return wrap(err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return wrap(err)
	}
	return nil
}

// YAML allows empty keys, which mean absent here.
func dropNulls(v any) any {
	switch v := v.(type) {
	case map[string]any:
		ret := make(map[string]any, len(v))
		for key, value := range v {
			if value == nil {
				continue
			}
			ret[key] = dropNulls(value)
		}
		return ret
	case []any:
		ret := make([]any, 0, len(v))
		for _, value := range v {
			if value == nil {
				continue
			}
			ret = append(ret, dropNulls(value))
		}
		return ret
	}
	return v
}
