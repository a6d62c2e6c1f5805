package playbooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Agent locates the files of one agent under the agents directory:
//
//	<agents>/<name>/playbook/<name>_playbook.yaml
//	<agents>/<name>/pipelines/<name>_optimized.json
type Agent struct {
	Name string
	Dir  string
}

func NewAgent(agentsDir string, name string) Agent {
	name = strings.ToLower(strings.TrimSpace(name))
	return Agent{
		Name: name,
		Dir:  filepath.Join(agentsDir, name),
	}
}

func (a Agent) PipelinesDir() string {
	return filepath.Join(a.Dir, "pipelines")
}

func (a Agent) OptimizedPath() string {
	return filepath.Join(a.PipelinesDir(), a.Name+"_optimized.json")
}

func (a Agent) HasOptimized() bool {
	_, err := os.Stat(a.OptimizedPath())
	return err == nil
}

// PlaybookPath finds the playbook file, accepting the hyphenated spelling of the agent name
// and falling back to the first *_playbook.yaml in the directory.
func (a Agent) PlaybookPath() (string, error) {
	dir := filepath.Join(a.Dir, "playbook")
	if _, err := os.Stat(dir); err != nil {
		return "", wrap(fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	candidates := []string{
		filepath.Join(dir, a.Name+"_playbook.yaml"),
		filepath.Join(dir, strings.ReplaceAll(a.Name, "_", "-")+"_playbook.yaml"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	// Glob sorts its result
	matches, err := filepath.Glob(filepath.Join(dir, "*_playbook.yaml"))
	if err != nil {
		return "", wrap(err)
	}
	if len(matches) > 0 {
		return matches[0], nil
	}

	return "", wrap(fmt.Errorf("%w: agent %q in %s", ErrNotFound, a.Name, dir))
}

func (a Agent) LoadPlaybook() (*Spec, error) {
	path, err := a.PlaybookPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}
