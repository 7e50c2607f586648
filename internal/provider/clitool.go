package provider

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// CLITool serves the cli_tool kind by spawning an agent CLI in headless
// mode with newline-delimited JSON output. The agent has filesystem access
// in Workdir, so cli_tool phases can edit project files directly.
type CLITool struct {
	cfg     workflow.ProviderConfig
	binPath string

	// Workdir is the directory the CLI runs in; empty means inherit.
	Workdir string
}

// NewCLITool builds a CLI provider. binPath falls back to "claude".
func NewCLITool(cfg workflow.ProviderConfig, binPath string) *CLITool {
	if binPath == "" {
		binPath = "claude"
	}
	return &CLITool{cfg: cfg, binPath: binPath}
}

// Kind returns the served provider kind.
func (p *CLITool) Kind() workflow.ProviderKind {
	return workflow.ProviderCLITool
}

// Generate spawns the CLI and collects its streamed output. Each stdout
// line is a JSON envelope: assistant messages carry text deltas, the final
// result message carries usage and the aggregate text.
func (p *CLITool) Generate(ctx context.Context, req Request) (*Result, error) {
	args := []string{
		"-p", req.Prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
	}
	if p.cfg.Model != "" {
		args = append(args, "--model", p.cfg.Model)
	}
	if req.System != "" {
		args = append(args, "--append-system-prompt", req.System)
	}

	cmd := exec.CommandContext(ctx, p.binPath, args...)
	if p.Workdir != "" {
		cmd.Dir = p.Workdir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ucerrors.New(ucerrors.CodeProviderFatal, "open cli stdout").WithCause(err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, ucerrors.Newf(ucerrors.CodeProviderFatal, "start %s", p.binPath).WithCause(err)
	}

	result := &Result{ModelUsed: p.cfg.Model}
	var content strings.Builder
	var resultText string
	var isError bool
	var errorText string

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !gjson.Valid(line) {
			continue
		}
		switch gjson.Get(line, "type").String() {
		case "assistant":
			for _, block := range gjson.Get(line, "message.content").Array() {
				switch block.Get("type").String() {
				case "text":
					text := block.Get("text").String()
					if text == "" {
						continue
					}
					content.WriteString(text)
					if req.OnChunk != nil {
						req.OnChunk(text)
					}
				case "tool_use":
					if req.OnTodos != nil && block.Get("name").String() == "TodoWrite" {
						if todos := parseTodos(block.Get("input.todos")); todos != nil {
							req.OnTodos(todos)
						}
					}
				}
			}
			if model := gjson.Get(line, "message.model").String(); model != "" {
				result.ModelUsed = model
			}
		case "result":
			resultText = gjson.Get(line, "result").String()
			isError = gjson.Get(line, "is_error").Bool()
			if isError {
				errorText = resultText
			}
			result.TokensInput = int(gjson.Get(line, "usage.input_tokens").Int())
			result.TokensOutput = int(gjson.Get(line, "usage.output_tokens").Int())
			result.FinishReason = gjson.Get(line, "subtype").String()
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, classifyNetwork(ctx, err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, ucerrors.Newf(ucerrors.CodeProviderFatal, "cli exited: %s", msg).WithCause(err)
	}
	if scanErr != nil {
		return nil, ucerrors.New(ucerrors.CodeProviderFatal, "read cli output").WithCause(scanErr)
	}
	if isError {
		return nil, ucerrors.Newf(ucerrors.CodeProviderFatal, "cli reported error: %s", errorText)
	}

	result.Content = content.String()
	if result.Content == "" {
		result.Content = resultText
	}
	return result, nil
}

// parseTodos converts a TodoWrite tool input into todo items. Entries
// without content are dropped.
func parseTodos(raw gjson.Result) []Todo {
	var todos []Todo
	for _, item := range raw.Array() {
		content := item.Get("content").String()
		if content == "" {
			continue
		}
		todos = append(todos, Todo{Content: content, Status: item.Get("status").String()})
	}
	return todos
}

// CheckHealth verifies the CLI binary is on PATH.
func (p *CLITool) CheckHealth(ctx context.Context) error {
	if _, err := exec.LookPath(p.binPath); err != nil {
		return fmt.Errorf("cli %s not found: %w", p.binPath, err)
	}
	return nil
}

// ListModels reports the configured model; the CLI has no catalog endpoint.
func (p *CLITool) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if p.cfg.Model == "" {
		return nil, nil
	}
	return []ModelInfo{{ID: p.cfg.Model}}, nil
}

// Close is a no-op; each Generate owns its process.
func (p *CLITool) Close() error {
	return nil
}
