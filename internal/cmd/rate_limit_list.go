package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/insightdeck/insightdeck/internal/core/store"
	"github.com/insightdeck/insightdeck/internal/output"
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored admission windows",
	Long: `List stored admission windows. Without a selector every window is shown.

Examples:
  insightdeck rate-limit list
  insightdeck rate-limit list --prefix youtube --output-format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := windowQueryFromFlags(cmd)
		if !query.All && query.Key == "" && query.Prefix == "" {
			query.All = true
		}

		dest, err := resolveDestination(cmd, "rate-limit.list", output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}

		backend, err := openWindowBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		entries, err := backend.ListWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		var rendered strings.Builder
		if err := writeWindowList(dest.format, &rendered, backend.Driver(), entries); err != nil {
			return err
		}
		return dest.write(rendered.String())
	},
}

type windowListEntry struct {
	Key          string    `json:"key"`
	RequestCount int       `json:"request_count"`
	WindowStart  time.Time `json:"window_start"`
}

func writeWindowList(format output.Format, w io.Writer, driver string, entries []store.WindowEntry) error {
	if format == output.FormatJSON {
		rows := make([]windowListEntry, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, windowListEntry{
				Key:          entry.Key,
				RequestCount: entry.Window.RequestCount,
				WindowStart:  entry.Window.WindowStart.UTC(),
			})
		}
		return writeIndentedJSON(w, rows)
	}

	lines := []string{fmt.Sprintf("Admission Windows (%s)", driver), ""}
	if len(entries) == 0 {
		lines = append(lines, "(no stored admission windows)")
	}
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s: count=%d window_start=%s",
			entry.Key, entry.Window.RequestCount, entry.Window.WindowStart.UTC().Format(time.RFC3339)))
	}

	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func writeIndentedJSON(w io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func init() {
	addWindowSelectorFlags(rateLimitListCmd, "List")
	addOutputFlags(rateLimitListCmd, output.FormatTable, output.FormatJSON)
}
