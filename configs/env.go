package configs

import "os"

// Env looks up an environment variable, returning "" when unset.
type Env func(key string) string

func (Module) Env() Env {
	return os.Getenv
}

func MapEnv(m map[string]string) Env {
	return func(key string) string {
		return m[key]
	}
}
