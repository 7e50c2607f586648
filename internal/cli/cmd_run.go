package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/events"
	"github.com/spfcraze/ultraclaude/internal/orchestrator"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	var (
		templateID  string
		projectID   string
		projectPath string
		budgetLimit float64
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "run \"task description\"",
		Short: "Run a workflow for a task",
		Long: `Run a workflow for a task and stream its output.

The task description fills the {task_description} placeholder in each
phase prompt. Without --template the default template is used.

Press Ctrl+C to cancel the execution.

Example:
  ultraclaude run "Fix the login redirect loop"
  ultraclaude run "Add rate limiting" --template review-pipeline
  ultraclaude run "Refactor auth" --budget 5.00 --interactive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			req := orchestrator.CreateRequest{
				TemplateID:      templateID,
				Trigger:         "cli",
				ProjectID:       projectID,
				ProjectPath:     projectPath,
				TaskDescription: args[0],
				Interactive:     interactive,
			}
			if cmd.Flags().Changed("budget") {
				req.BudgetLimit = &budgetLimit
			}

			exec, err := a.engine.CreateExecution(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Printf("Execution %s (%s)\n", exec.ID, exec.TemplateName)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nCancelling...")
				a.engine.Cancel(exec.ID)
				cancel()
			}()

			// Stream events while the execution runs in this process.
			// Unsubscribe closes the channel and ends the stream goroutine.
			ch := a.bus.Subscribe(exec.ID)
			streamDone := make(chan struct{})
			go func() {
				defer close(streamDone)
				streamEvents(a, exec.ID, ch)
			}()

			final, err := a.engine.Run(ctx, exec.ID)
			a.bus.Unsubscribe(exec.ID, ch)
			<-streamDone
			if err != nil {
				return err
			}

			printRunSummary(final)
			if final.Status != workflow.StatusCompleted {
				return fmt.Errorf("execution %s: %s", final.ID, final.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&templateID, "template", "t", "", "workflow template id (default: resolved default template)")
	cmd.Flags().StringVar(&projectID, "project", "", "project id for budget and template scoping")
	cmd.Flags().StringVar(&projectPath, "project-path", "", "project path substituted into prompts")
	cmd.Flags().Float64Var(&budgetLimit, "budget", 0, "per-execution budget limit in USD")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "gate sensitive phases on approval prompts")
	return cmd
}

// streamEvents prints bus events for one execution until the channel closes.
// Approval requests are answered from stdin.
func streamEvents(a *app, executionID string, ch <-chan events.Event) {
	stdin := bufio.NewReader(os.Stdin)
	for ev := range ch {
		switch data := ev.Data.(type) {
		case events.PhaseStart:
			if !quiet {
				fmt.Printf("\n%s %s (iteration %d)\n", colorize(colorCyan, "▸"), data.Name, data.Iteration)
			}
		case events.PhaseOutput:
			fmt.Print(data.Chunk)
		case events.PhaseComplete:
			if !quiet {
				fmt.Printf("\n%s phase %s: %s (%s)\n", phaseIcon(workflow.PhaseStatus(data.Status)), data.PhaseID, data.Status, formatUSD(data.CostUSD))
			}
			if data.Error != "" {
				fmt.Fprintln(os.Stderr, colorize(colorRed, "  "+data.Error))
			}
		case events.StatusUpdate:
			if !quiet && data.Reason != "" {
				fmt.Printf("%s %s\n", colorize(colorGray, data.Status+":"), data.Reason)
			}
		case events.ApprovalNeeded:
			fmt.Printf("\n%s %s [y/N]: ", colorize(colorYellow, "approval needed:"), data.Message)
			line, err := stdin.ReadString('\n')
			approved := err == nil && strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
			if rerr := a.approvals.Resolve(executionID, approved, db.SourceCLI); rerr != nil {
				// Already resolved elsewhere or timed out.
				fmt.Fprintln(os.Stderr, colorize(colorGray, rerr.Error()))
			}
		}
	}
}

// printRunSummary prints the terminal state and totals of an execution.
func printRunSummary(exec *workflow.Execution) {
	fmt.Printf("\n%s", statusIcon(exec.Status))
	if exec.Error != "" {
		fmt.Printf("  %s", exec.Error)
	}
	fmt.Printf("\nCost: %s  Tokens: %d in / %d out  Artifacts: %d\n",
		formatUSD(exec.TotalCostUSD), exec.TotalInputTokens, exec.TotalOutputTokens, len(exec.ArtifactIDs))
}
