package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newShowCmd creates the show command
func newShowCmd() *cobra.Command {
	var showArtifacts bool

	cmd := &cobra.Command{
		Use:   "show EXECUTION_ID",
		Short: "Show execution details",
		Long: `Show an execution: status, phases, totals, and approval history.

Example:
  ultraclaude show a1b2c3d4
  ultraclaude show a1b2c3d4 --artifacts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			exec, err := a.engine.Get(args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(exec)
			}

			fmt.Printf("Execution: %s\n", exec.ID)
			fmt.Printf("Status:    %s\n", statusIcon(exec.Status))
			fmt.Printf("Template:  %s (%s)\n", exec.TemplateName, exec.TemplateID)
			fmt.Printf("Task:      %s\n", exec.TaskDescription)
			if exec.ProjectID != "" {
				fmt.Printf("Project:   %s\n", exec.ProjectID)
			}
			fmt.Printf("Iteration: %d\n", exec.Iteration)
			if exec.Error != "" {
				fmt.Printf("Error:     %s\n", colorize(colorRed, exec.Error))
			}
			fmt.Printf("Cost:      %s  (%d in / %d out tokens)\n",
				formatUSD(exec.TotalCostUSD), exec.TotalInputTokens, exec.TotalOutputTokens)
			if exec.BudgetLimit != nil {
				fmt.Printf("Budget:    %s\n", formatUSD(*exec.BudgetLimit))
			}

			if len(exec.PhaseExecutions) > 0 {
				fmt.Println("\nPhases:")
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  \tPHASE\tITER\tSTATUS\tCOST\tERROR")
				for _, pe := range exec.PhaseExecutions {
					fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\t%s\n",
						phaseIcon(pe.Status), pe.PhaseID, pe.Iteration, pe.Status,
						formatUSD(pe.CostUSD), truncate(pe.Error, 60))
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if pending := a.approvals.Pending(exec.ID); pending != nil {
				fmt.Printf("\n%s %s\n", colorize(colorYellow, "Pending approval:"), pending.Message)
			}

			history, err := a.approvals.History(exec.ID)
			if err == nil && len(history) > 0 {
				fmt.Println("\nApprovals:")
				for _, rec := range history {
					fmt.Printf("  %s  %s (%s)\n", rec.CreatedAt.Format("15:04:05"), rec.Action, rec.Source)
				}
			}

			if showArtifacts {
				arts, err := a.artifacts.GetByExecution(exec.ID)
				if err != nil {
					return err
				}
				fmt.Println("\nArtifacts:")
				for _, art := range arts {
					fmt.Printf("  %s  %-10s %s (%d bytes)\n", art.ID, art.Type, art.Name, len(art.Content))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showArtifacts, "artifacts", false, "list the execution's artifacts")
	return cmd
}
