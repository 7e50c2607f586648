// Package runner executes a single phase: prompt assembly, the provider
// call with retry, output classification, and artifact publication.
package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spfcraze/ultraclaude/internal/workflow"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// ExpandPrompt resolves template placeholders against the execution and its
// artifacts. {task_description} and {project_path} come from the execution;
// {artifact:NAME} matches the first artifact (in creation order) whose name
// contains NAME case-insensitively and inlines its content. A missing
// artifact leaves a visible sentinel; unknown placeholders pass through
// untouched.
func ExpandPrompt(tmpl string, exec *workflow.Execution, artifacts []workflow.Artifact) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		switch {
		case key == "task_description":
			return exec.TaskDescription
		case key == "project_path":
			return exec.ProjectPath
		case strings.HasPrefix(key, "artifact:"):
			name := strings.TrimPrefix(key, "artifact:")
			if a := findArtifact(artifacts, name); a != nil {
				return a.Content
			}
			return fmt.Sprintf("[Artifact '%s' not found]", name)
		default:
			return match
		}
	})
}

func findArtifact(artifacts []workflow.Artifact, name string) *workflow.Artifact {
	needle := strings.ToLower(name)
	for i := range artifacts {
		if strings.Contains(strings.ToLower(artifacts[i].Name), needle) {
			return &artifacts[i]
		}
	}
	return nil
}
