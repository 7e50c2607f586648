package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

// newWatchCmd creates the watch command
func newWatchCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "watch EXECUTION_ID",
		Short: "Show an execution's event timeline",
		Long: `Show the recorded event timeline of an execution.

With --follow, attach to the serve daemon's event stream and print
live events after the replay.

Example:
  ultraclaude watch a1b2c3d4
  ultraclaude watch a1b2c3d4 --follow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			if _, err := a.engine.Get(id); err != nil {
				return err
			}

			records, err := a.store.ListEvents(id, 0)
			if err != nil {
				return err
			}
			for _, rec := range records {
				printEventLine(rec.CreatedAt.Format("15:04:05"), rec.EventType, []byte(rec.Data))
			}

			if !follow {
				return nil
			}

			client := newAPIClient(a.serverBaseURL())
			resp, err := client.eventStream(cmd.Context(), id)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				eventType := gjson.GetBytes(line, "type").String()
				if eventType == "init" {
					continue // replay above already covered history
				}
				ts := gjson.GetBytes(line, "time").Time().Format("15:04:05")
				printEventLine(ts, eventType, []byte(gjson.GetBytes(line, "data").Raw))
			}
			return scanner.Err()
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow live events from the serve daemon")
	return cmd
}

// printEventLine renders one event with the fields that matter for a
// timeline; unknown event types fall back to raw payload.
func printEventLine(ts, eventType string, data []byte) {
	prefix := fmt.Sprintf("%s  %-18s", colorize(colorGray, ts), eventType)
	switch eventType {
	case "status_update":
		fmt.Printf("%s %s %s\n", prefix,
			gjson.GetBytes(data, "status").String(),
			gjson.GetBytes(data, "reason").String())
	case "phase_start":
		fmt.Printf("%s %s (iteration %s)\n", prefix,
			gjson.GetBytes(data, "name").String(),
			gjson.GetBytes(data, "iteration").Raw)
	case "phase_complete":
		fmt.Printf("%s %s %s %s\n", prefix,
			gjson.GetBytes(data, "phase_id").String(),
			gjson.GetBytes(data, "status").String(),
			gjson.GetBytes(data, "error").String())
	case "phase_output":
		chunk := gjson.GetBytes(data, "content_chunk").String()
		fmt.Printf("%s %s\n", prefix, truncate(chunk, 80))
	case "approval_needed":
		fmt.Printf("%s %s\n", prefix, gjson.GetBytes(data, "message").String())
	case "approval_resolved":
		fmt.Printf("%s approved=%s source=%s\n", prefix,
			gjson.GetBytes(data, "approved").Raw,
			gjson.GetBytes(data, "source").String())
	case "todo_update":
		todos := gjson.GetBytes(data, "todos").Array()
		done := 0
		for _, td := range todos {
			if td.Get("status").String() == "completed" {
				done++
			}
		}
		fmt.Printf("%s %d/%d done\n", prefix, done, len(todos))
	default:
		fmt.Printf("%s %s\n", prefix, truncate(string(data), 80))
	}
}
