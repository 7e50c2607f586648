package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCancelCmd creates the cancel command
func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel EXECUTION_ID",
		Short: "Cancel an execution",
		Long: `Cancel an execution.

A pending or paused execution is marked cancelled directly. An execution
running under a server daemon is cancelled through its API.

Example:
  ultraclaude cancel a1b2c3d4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			if a.engine.Cancel(id) {
				fmt.Println("Cancelled", id)
				return nil
			}

			// Not cancellable locally: a daemon may own the running state.
			client := newAPIClient(a.serverBaseURL())
			if client.cancelExecution(cmd.Context(), id) {
				fmt.Println("Cancelled", id, "via server")
				return nil
			}
			return fmt.Errorf("execution %s is not cancellable", id)
		},
	}
}
