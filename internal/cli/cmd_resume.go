package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// newResumeCmd creates the resume command
func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume EXECUTION_ID",
		Short: "Resume a paused execution",
		Long: `Resume a paused execution from its current phase and stream
its output until it finishes.

Example:
  ultraclaude resume a1b2c3d4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			exec, err := a.engine.Get(id)
			if err != nil {
				return err
			}
			if exec.Status != workflow.StatusPaused {
				return ucerrors.Newf(ucerrors.CodeInvalidState, "execution %s is %s, not paused", id, exec.Status)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nCancelling...")
				a.engine.Cancel(id)
				cancel()
			}()

			ch := a.bus.Subscribe(id)
			streamDone := make(chan struct{})
			go func() {
				defer close(streamDone)
				streamEvents(a, id, ch)
			}()

			final, err := a.engine.Run(ctx, id)
			a.bus.Unsubscribe(id, ch)
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
}
