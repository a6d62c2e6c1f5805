package playbooks

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Parse decodes a playbook document. Both the wrapped form {apiVersion, kind, metadata, spec} and a bare spec are accepted.
func Parse(data []byte) (*Spec, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, wrap(err)
	}

	body, wrapped := raw["spec"].(map[string]any)
	if !wrapped {
		body = raw
	}
	if err := Check(body); err != nil {
		return nil, err
	}

	if !wrapped {
		spec := new(Spec)
		if err := yaml.Unmarshal(data, spec); err != nil {
			return nil, wrap(err)
		}
		return spec, nil
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, wrap(err)
	}
	spec := doc.Spec
	if spec.Metadata == (Metadata{}) {
		spec.Metadata = doc.Metadata
	}
	return spec, nil
}

func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap(err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, wrap(fmt.Errorf("playbook %s: %w", path, err))
	}
	return spec, nil
}
