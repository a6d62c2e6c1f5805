package configs

import (
	"errors"
	"iter"
)

// First decodes the value at path from the first source defining it.
// A missing value yields the zero T; any other failure panics.
func First[T any](loader Loader, path string) T {
	var value T
	if err := loader.AssignFirst(path, &value); err != nil {
		if errors.Is(err, ErrValueNotFound) {
			return value
		}
		panic(err)
	}
	return value
}

// All decodes the value at path from every source defining it, earlier sources first.
func All[T any](loader Loader, path string) iter.Seq[T] {
	return func(yield func(T) bool) {
		for value, err := range loader.IterCueValues(path) {
			if err != nil {
				panic(err)
			}
			var v T
			if err := value.Decode(&v); err != nil {
				panic(err)
			}
			if !yield(v) {
				return
			}
		}
	}
}

// MergedMap unions the maps at path across sources. Keys from earlier sources win.
func MergedMap[V any](loader Loader, path string) map[string]V {
	var ret map[string]V
	for m := range All[map[string]V](loader, path) {
		if ret == nil {
			ret = make(map[string]V, len(m))
		}
		for k, v := range m {
			if _, ok := ret[k]; !ok {
				ret[k] = v
			}
		}
	}
	return ret
}
