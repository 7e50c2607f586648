package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/config"
	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/templates"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize ultraclaude in the current directory",
		Long: `Initialize ultraclaude in the current directory.

Creates the .ultraclaude directory with a default config file, opens the
database, and seeds the built-in workflow template.

Example:
  ultraclaude init
  ultraclaude init --force    # overwrite an existing config`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}

			cfgPath := filepath.Join(config.EnginePath(root), config.ConfigFileName)
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("already initialized: %s exists (use --force to overwrite)", cfgPath)
			}

			cfg := config.Default()
			if err := cfg.Save(root); err != nil {
				return err
			}

			store, err := db.Open(cfg.ResolvePath(root, cfg.Database.Path))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.SeedBuiltinTemplate(); err != nil {
				return fmt.Errorf("seed builtin template: %w", err)
			}

			shipped, err := templates.Builtin()
			if err != nil {
				return err
			}
			for _, tpl := range shipped {
				if _, err := store.GetTemplate(tpl.ID); err == nil {
					continue
				}
				if err := store.SaveTemplate(tpl); err != nil {
					return fmt.Errorf("seed template %s: %w", tpl.ID, err)
				}
			}

			if !quiet {
				fmt.Println("Initialized ultraclaude in", config.EnginePath(root))
				fmt.Println("Run a workflow with: ultraclaude run \"Your task\"")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}
