package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// newListCmd creates the list command
func newListCmd() *cobra.Command {
	var (
		status    string
		projectID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List workflow executions",
		Long: `List workflow executions, most recent first.

Example:
  ultraclaude list
  ultraclaude list --status running
  ultraclaude list --project backend --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			execs, err := a.engine.List(db.ListExecutionsOpts{
				ProjectID: projectID,
				Status:    workflow.ExecutionStatus(status),
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(execs)
			}

			if len(execs) == 0 {
				fmt.Println("No executions found. Start one with: ultraclaude run \"Your task\"")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTEMPLATE\tCOST\tTASK")
			fmt.Fprintln(w, "──\t──────\t────────\t────\t────")
			for _, e := range execs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ID, statusIcon(e.Status), e.TemplateName,
					formatUSD(e.TotalCostUSD), truncate(e.TaskDescription, 48))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&projectID, "project", "", "filter by project id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of executions")
	return cmd
}
