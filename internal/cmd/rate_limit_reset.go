package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdeck/insightdeck/internal/output"
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored admission windows",
	Long: `Delete stored admission windows so the next request opens a fresh window.

Examples:
  insightdeck rate-limit reset --key youtube-api-full.p.rapidapi.com
  insightdeck rate-limit reset --all --dry-run
  insightdeck rate-limit reset --all --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := windowQueryFromFlags(cmd)
		if err := query.Validate(); err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if query.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		dest, err := resolveDestination(cmd, "rate-limit.reset", output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}

		backend, err := openWindowBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		matched, err := backend.CountWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		var deleted int64
		if !dryRun {
			if deleted, err = backend.ResetWindows(cmd.Context(), query); err != nil {
				return err
			}
		}

		var rendered strings.Builder
		if err := writeRateLimitResetResult(dest.format, &rendered, matched, deleted, dryRun); err != nil {
			return err
		}
		return dest.write(rendered.String())
	},
}

func writeRateLimitResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		return writeIndentedJSON(w, map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		})
	}

	var err error
	if dryRun {
		_, err = fmt.Fprintf(w, "Would delete %d admission window(s)\n", matched)
	} else {
		_, err = fmt.Fprintf(w, "Deleted %d/%d admission window(s)\n", deleted, matched)
	}
	return err
}

func init() {
	addWindowSelectorFlags(rateLimitResetCmd, "Reset")
	rateLimitResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().Bool("dry-run", false, "Show what would be deleted")
	addOutputFlags(rateLimitResetCmd, output.FormatTable, output.FormatJSON)
}
