package programs

import (
	"maps"
	"slices"
	"sync"

	"github.com/reusee/optix/playbooks"
)

// Factory builds the program of an agent from its playbook.
type Factory func(spec *playbooks.Spec) Program

var (
	registryLock sync.RWMutex
	registry     = make(map[string]Factory)
)

// Register makes a program available under the agent name. Generated programs call it from init.
func Register(name string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[playbooks.ToSnakeCase(name)] = factory
}

func Lookup(name string) (Factory, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	factory, ok := registry[playbooks.ToSnakeCase(name)]
	return factory, ok
}

func Names() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// ForSpec returns the program for an agent: the registered one, or Predict.
type ForSpec func(agent string, spec *playbooks.Spec) Program

func (Module) ForSpec() ForSpec {
	return func(agent string, spec *playbooks.Spec) Program {
		for _, name := range []string{agent, spec.Name()} {
			if name == "" {
				continue
			}
			if factory, ok := Lookup(name); ok {
				return factory(spec)
			}
		}
		return NewPredict(spec)
	}
}
