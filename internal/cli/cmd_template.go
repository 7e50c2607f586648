package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// newTemplateCmd creates the template command group
func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates", "tpl"},
		Short:   "Manage workflow templates",
		Long: `Manage workflow templates.

Templates are stored in the database. Import and export use YAML files
so templates can live in version control.

Example:
  ultraclaude template list
  ultraclaude template show review-pipeline
  ultraclaude template import pipeline.yaml
  ultraclaude template export review-pipeline > pipeline.yaml`,
	}

	cmd.AddCommand(newTemplateListCmd())
	cmd.AddCommand(newTemplateShowCmd())
	cmd.AddCommand(newTemplateImportCmd())
	cmd.AddCommand(newTemplateExportCmd())
	cmd.AddCommand(newTemplateDeleteCmd())
	cmd.AddCommand(newTemplateDefaultCmd())
	return cmd
}

func newTemplateListCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tpls, err := a.store.ListTemplates(projectID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(tpls)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPHASES\tSCOPE\tDEFAULT")
			for _, tpl := range tpls {
				scope := "project"
				if tpl.IsGlobal {
					scope = "global"
				}
				def := ""
				if tpl.IsDefault {
					def = "✓"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", tpl.ID, tpl.Name, len(tpl.Phases), scope, def)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "include templates scoped to this project")
	return cmd
}

func newTemplateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show TEMPLATE_ID",
		Short: "Show a template as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tpl, err := a.store.GetTemplate(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(tpl)
			}

			data, err := workflow.MarshalTemplate(tpl)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newTemplateImportCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a template from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tpl, err := workflow.UnmarshalTemplate(data)
			if err != nil {
				return err
			}
			if projectID != "" {
				tpl.ProjectID = projectID
				tpl.IsGlobal = false
			}
			tpl.Normalize()
			if err := tpl.Validate(); err != nil {
				return err
			}
			if err := a.store.SaveTemplate(tpl); err != nil {
				return err
			}
			fmt.Printf("Imported template %s (%s)\n", tpl.ID, tpl.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "scope the template to a project")
	return cmd
}

func newTemplateExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export TEMPLATE_ID",
		Short: "Export a template as YAML to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tpl, err := a.store.GetTemplate(args[0])
			if err != nil {
				return err
			}
			data, err := workflow.MarshalTemplate(tpl)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newTemplateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete TEMPLATE_ID",
		Aliases: []string{"rm"},
		Short:   "Delete a template",
		Long: `Delete a template.

Existing executions keep their snapshot of the template and are not
affected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteTemplate(args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted template", args[0])
			return nil
		},
	}
}

func newTemplateDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default TEMPLATE_ID",
		Short: "Mark a template as the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tpl, err := a.store.GetTemplate(args[0])
			if err != nil {
				return err
			}
			tpl.IsDefault = true
			if err := a.store.SaveTemplate(tpl); err != nil {
				return err
			}
			fmt.Println("Default template set to", tpl.ID)
			return nil
		},
	}
}
