package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdeck/insightdeck/internal/metrics"
	"github.com/insightdeck/insightdeck/internal/output"
)

var playstoreCmd = &cobra.Command{
	Use:   "playstore <query>",
	Short: "Summarize Play Store ratings and reviews for an app",
	Long: `Search the Play Store and summarize the first matching app: rating,
review count, top reviews and review insights.

Examples:
  insightdeck playstore "google keep"
  insightdeck playstore notion --output-format markdown --out notion.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("query is required")
		}

		dest, err := resolveDestination(cmd, sanitizeFilename(query)+".playstore")
		if err != nil {
			return err
		}

		cfg := loadConfig(cmd.Context())
		analytics, err := newPlayStoreClient(cfg).FetchAnalytics(cmd.Context(), query)
		metrics.RecordOperation("playstore", err == nil)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(dest.format).FormatAnalytics(analytics)
		if err != nil {
			return err
		}
		return dest.write(rendered)
	},
}

func init() {
	rootCmd.AddCommand(playstoreCmd)

	addOutputFlags(playstoreCmd, output.FormatTable, output.FormatJSON, output.FormatMarkdown)
}
