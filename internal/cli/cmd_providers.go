package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/provider"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// newProvidersCmd creates the providers command
func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show configured provider credentials and local servers",
		Long: `Show which provider credentials are configured and probe for
local inference servers (ollama, LM Studio).

Example:
  ultraclaude providers`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			type row struct {
				Kind       workflow.ProviderKind `json:"kind"`
				Configured bool                  `json:"configured"`
				Detail     string                `json:"detail,omitempty"`
			}

			rows := []row{
				{workflow.ProviderSDKAgent, os.Getenv(a.cfg.Providers.AnthropicAPIKeyEnv) != "", a.cfg.Providers.AnthropicAPIKeyEnv},
				{workflow.ProviderOpenAI, os.Getenv(a.cfg.Providers.OpenAIAPIKeyEnv) != "", a.cfg.Providers.OpenAIAPIKeyEnv},
				{workflow.ProviderOpenRouter, os.Getenv(a.cfg.Providers.OpenRouterAPIKeyEnv) != "", a.cfg.Providers.OpenRouterAPIKeyEnv},
				{workflow.ProviderGeminiDirect, os.Getenv(a.cfg.Providers.GeminiAPIKeyEnv) != "", a.cfg.Providers.GeminiAPIKeyEnv},
				{workflow.ProviderCLITool, a.cfg.Providers.CLIPath != "", a.cfg.Providers.CLIPath},
			}
			for _, d := range provider.DetectLocalProviders(cmd.Context()) {
				detail := d.BaseURL
				if len(d.Models) > 0 {
					detail += " [" + strings.Join(d.Models, ", ") + "]"
				}
				rows = append(rows, row{d.Kind, d.Available, detail})
			}

			if jsonOut {
				return printJSON(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tCONFIGURED\tDETAIL")
			for _, r := range rows {
				mark := colorize(colorRed, "✗")
				if r.Configured {
					mark = colorize(colorGreen, "✓")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Kind, mark, r.Detail)
			}
			return w.Flush()
		},
	}
}
