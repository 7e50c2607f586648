package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/db"
)

// newApproveCmd creates the approve command
func newApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve EXECUTION_ID",
		Short: "Approve a pending approval request",
		Long: `Approve an execution's pending approval request.

A request pending in this process is resolved directly; otherwise the
decision is sent to the serve daemon.

Example:
  ultraclaude approve a1b2c3d4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveApproval(cmd, args[0], true)
		},
	}
}

// newRejectCmd creates the reject command
func newRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject EXECUTION_ID",
		Short: "Reject a pending approval request",
		Long: `Reject an execution's pending approval request.

Example:
  ultraclaude reject a1b2c3d4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveApproval(cmd, args[0], false)
		},
	}
}

func resolveApproval(cmd *cobra.Command, executionID string, approved bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Pending approvals live in the process that runs the execution.
	if a.approvals.HasPending(executionID) {
		err = a.approvals.Resolve(executionID, approved, db.SourceCLI)
	} else {
		client := newAPIClient(a.serverBaseURL())
		err = client.resolveApproval(cmd.Context(), executionID, approved)
	}
	if err != nil {
		return err
	}

	decision := "Approved"
	if !approved {
		decision = "Rejected"
	}
	fmt.Println(decision, "execution", executionID)
	return nil
}
