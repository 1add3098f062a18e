package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdeck/insightdeck/internal/metrics"
	"github.com/insightdeck/insightdeck/internal/output"
)

var marketCmd = &cobra.Command{
	Use:   "market <query>",
	Short: "Generate market analysis chart data for a product or category",
	Long: `Ask an OpenAI-compatible chat model (Groq by default) for market analysis
data about a query: a historic trend plus market share, sentiment, regional,
demographic and price distributions.

The API key comes from market.api_key, INSIGHTDECK_MARKET_API_KEY or the
dashboard's NEXT_PUBLIC_TGROQ_API_KEY.

Examples:
  insightdeck market "electric scooters"
  insightdeck market "meal kits" --output-format json --out meal-kits.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("query is required")
		}

		dest, err := resolveDestination(cmd, sanitizeFilename(query)+".market")
		if err != nil {
			return err
		}

		cfg := loadConfig(cmd.Context())
		analysis, err := newMarketClient(cfg).FetchAnalysis(cmd.Context(), query)
		metrics.RecordOperation("market", err == nil)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(dest.format).FormatMarket(analysis)
		if err != nil {
			return err
		}
		return dest.write(rendered)
	},
}

func init() {
	rootCmd.AddCommand(marketCmd)

	addOutputFlags(marketCmd, output.FormatTable, output.FormatJSON, output.FormatMarkdown)
}
