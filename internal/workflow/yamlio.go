package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalTemplate serializes a template to YAML for export and file-based
// template sharing.
func MarshalTemplate(t *Template) ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal template %s: %w", t.ID, err)
	}
	return data, nil
}

// UnmarshalTemplate parses a YAML template, applies defaults, and validates it.
func UnmarshalTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	return &t, nil
}
