package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spfcraze/ultraclaude/internal/api"
)

// newServeCmd creates the serve command for the API server
func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the ultraclaude API server.

The server provides REST endpoints, an NDJSON event stream, and a
WebSocket feed for:
  • Execution management (create, run, cancel, resume, skip)
  • Approval resolution
  • Template, budget, and artifact management

Example:
  ultraclaude serve              # listen on the configured address
  ultraclaude serve --port 3000  # override the port`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			addr := a.cfg.Server.Addr()
			if cmd.Flags().Changed("port") {
				addr = fmt.Sprintf("%s:%d", a.cfg.Server.Host, port)
			}

			server := api.New(addr, api.Deps{
				Engine:    a.engine,
				Store:     a.store,
				Approvals: a.approvals,
				Artifacts: a.artifacts,
				Tracker:   a.tracker,
				Registry:  a.registry,
				Bus:       a.bus,
				Logger:    a.logger,
			})

			if !quiet {
				fmt.Printf("Starting API server on %s\n", addr)
				fmt.Println("Press Ctrl+C to stop")
			}

			// Handle graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nShutting down...")
				cancel()
			}()

			return server.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}
