package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// newSkipCmd creates the skip command
func newSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip EXECUTION_ID PHASE_ID",
		Short: "Skip the current phase of a paused execution",
		Long: `Skip the current phase of a paused execution.

Only phases marked skippable in the template can be skipped, and only
while the execution is paused with no pending approval. Skipping the
final phase completes the execution.

Example:
  ultraclaude skip a1b2c3d4 review`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.engine.SkipPhase(args[0], args[1]) {
				return fmt.Errorf("phase %s of execution %s cannot be skipped", args[1], args[0])
			}

			exec, err := a.engine.Get(args[0])
			if err != nil {
				return err
			}
			if exec.Status == workflow.StatusCompleted {
				fmt.Printf("Skipped final phase %s. Execution completed.\n", args[1])
				return nil
			}
			fmt.Printf("Skipped phase %s. Resume with: ultraclaude resume %s\n", args[1], args[0])
			return nil
		},
	}
}
