// Package templates provides workflow templates shipped with the binary.
package templates

import (
	"embed"
	"fmt"

	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// Workflows contains embedded workflow template YAML files.
//
//go:embed workflows/*.yaml
var Workflows embed.FS

// Builtin parses every embedded workflow template. The returned templates
// are normalized and validated.
func Builtin() ([]*workflow.Template, error) {
	entries, err := Workflows.ReadDir("workflows")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	var result []*workflow.Template
	for _, entry := range entries {
		data, err := Workflows.ReadFile("workflows/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		tpl, err := workflow.UnmarshalTemplate(data)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", entry.Name(), err)
		}
		result = append(result, tpl)
	}
	return result, nil
}
