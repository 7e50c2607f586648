package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/db"
)

// newBudgetCmd creates the budget command group
func newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show and set spending budgets",
		Long: `Show and set spending budgets.

Budgets track cumulative provider cost at three scopes: execution,
project, and global. A scope without a stored limit is unbounded;
setting a limit of 0 removes the cap.

Example:
  ultraclaude budget show global
  ultraclaude budget show project
  ultraclaude budget set project backend --limit 50
  ultraclaude budget set global main --limit 200`,
	}

	cmd.AddCommand(newBudgetShowCmd())
	cmd.AddCommand(newBudgetSetCmd())
	return cmd
}

func newBudgetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "show SCOPE",
		Short:     "Show budget usage for a scope",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{db.ScopeExecution, db.ScopeProject, db.ScopeGlobal},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.tracker.List(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(rows)
			}
			if len(rows) == 0 {
				fmt.Println("No budget records for scope", args[0])
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSED\tLIMIT\tREMAINING")
			for _, row := range rows {
				limit, remaining := "-", "-"
				if row.LimitUSD > 0 {
					limit = formatUSD(row.LimitUSD)
					remaining = formatUSD(row.LimitUSD - row.UsedUSD)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.ScopeID, formatUSD(row.UsedUSD), limit, remaining)
			}
			return w.Flush()
		},
	}
}

func newBudgetSetCmd() *cobra.Command {
	var limit float64

	cmd := &cobra.Command{
		Use:   "set SCOPE SCOPE_ID --limit USD",
		Short: "Set a budget limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := args[0]
			switch scope {
			case db.ScopeExecution, db.ScopeProject, db.ScopeGlobal:
			default:
				return fmt.Errorf("unknown budget scope: %s", scope)
			}
			if !cmd.Flags().Changed("limit") {
				return fmt.Errorf("--limit is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tracker.SetLimit(scope, args[1], limit); err != nil {
				return err
			}
			row, err := a.tracker.Summary(scope, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Budget %s/%s: limit %s, used %s\n",
				scope, row.ScopeID, formatUSD(row.LimitUSD), formatUSD(row.UsedUSD))
			return nil
		},
	}

	cmd.Flags().Float64Var(&limit, "limit", 0, "budget limit in USD (0 removes the cap)")
	return cmd
}
