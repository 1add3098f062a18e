package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdeck/insightdeck/internal/core/store"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset stored admission windows",
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

func openWindowBackend(ctx context.Context) (store.Backend, error) {
	return openBackend(ctx, loadConfig(ctx))
}

// addWindowSelectorFlags registers --all, --key and --prefix. verb starts
// each help line.
func addWindowSelectorFlags(cmd *cobra.Command, verb string) {
	cmd.Flags().Bool("all", false, verb+" all windows")
	cmd.Flags().String("key", "", verb+" a single window (exact match)")
	cmd.Flags().String("prefix", "", verb+" windows with matching key prefix")
}

func windowQueryFromFlags(cmd *cobra.Command) store.WindowQuery {
	all, _ := cmd.Flags().GetBool("all")
	key, _ := cmd.Flags().GetString("key")
	prefix, _ := cmd.Flags().GetString("prefix")
	return store.WindowQuery{
		All:    all,
		Key:    strings.TrimSpace(key),
		Prefix: strings.TrimSpace(prefix),
	}
}
