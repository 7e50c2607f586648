package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// ANSI colors, used only when stdout is a terminal.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps s in color when stdout is a terminal.
func colorize(color, s string) string {
	if !stdoutIsTerminal() {
		return s
	}
	return color + s + colorReset
}

// statusIcon renders an execution status with a marker and color.
func statusIcon(status workflow.ExecutionStatus) string {
	switch status {
	case workflow.StatusCompleted:
		return colorize(colorGreen, "✓ completed")
	case workflow.StatusFailed:
		return colorize(colorRed, "✗ failed")
	case workflow.StatusBudgetExceeded:
		return colorize(colorRed, "$ budget_exceeded")
	case workflow.StatusCancelled:
		return colorize(colorGray, "- cancelled")
	case workflow.StatusRunning:
		return colorize(colorCyan, "▸ running")
	case workflow.StatusPaused:
		return colorize(colorYellow, "⏸ paused")
	case workflow.StatusAwaitingApproval:
		return colorize(colorYellow, "? awaiting_approval")
	default:
		return string(status)
	}
}

// phaseIcon renders a phase status marker.
func phaseIcon(status workflow.PhaseStatus) string {
	switch status {
	case workflow.PhaseCompleted:
		return colorize(colorGreen, "✓")
	case workflow.PhaseFailed:
		return colorize(colorRed, "✗")
	case workflow.PhaseSkipped:
		return colorize(colorGray, "→")
	case workflow.PhaseRunning:
		return colorize(colorCyan, "▸")
	default:
		return "·"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatUSD renders a dollar amount with enough precision for token costs.
func formatUSD(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}
