package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/metrics"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/output"
)

var commentsCmd = &cobra.Command{
	Use:   "comments <video-id>",
	Short: "Fetch top-level comments for a video",
	Long: `Fetch top-level comments for a video through the shared admission window.

Examples:
  insightdeck comments dQw4w9WgXcQ
  insightdeck comments dQw4w9WgXcQ --max-results 50 --pages 3
  insightdeck comments dQw4w9WgXcQ --page-token QURTSl9p --output-format json`,
	Args: cobra.ExactArgs(1),
	RunE: runComments,
}

func init() {
	rootCmd.AddCommand(commentsCmd)

	commentsCmd.Flags().Int("max-results", 0, "Comments per page (default from youtube.max_results)")
	commentsCmd.Flags().String("page-token", "", "Cursor returned by a previous page")
	commentsCmd.Flags().Int("pages", 1, "Number of pages to fetch; 0 follows the cursor to the end")
	addOutputFlags(commentsCmd, output.FormatTable, output.FormatJSON, output.FormatMarkdown)
}

// pageFetcher fetches one page of comments.
type pageFetcher interface {
	FetchPage(ctx context.Context, videoID string, opts core.FetchOptions) (*core.Page, error)
}

func runComments(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	videoID := strings.TrimSpace(args[0])
	maxResults, _ := cmd.Flags().GetInt("max-results")
	pageToken, _ := cmd.Flags().GetString("page-token")
	pages, _ := cmd.Flags().GetInt("pages")
	if pages < 0 {
		return fmt.Errorf("--pages must not be negative")
	}

	dest, err := resolveDestination(cmd, sanitizeFilename(videoID)+".comments")
	if err != nil {
		return err
	}

	cfg := loadConfig(ctx)
	if maxResults == 0 {
		maxResults = cfg.YouTube.MaxResults
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close() // nolint:errcheck // best-effort cleanup

	fetcher := newCommentFetcher(cfg, newLimiter(cfg, backend))
	opts := core.FetchOptions{MaxResults: maxResults, PageCursor: strings.TrimSpace(pageToken)}

	fetched, fetchErr := collectPages(ctx, fetcher, videoID, opts, pages)
	metrics.RecordOperation("comments", fetchErr == nil)
	if fetchErr != nil && len(fetched) == 0 {
		return fetchErr
	}
	if fetchErr != nil {
		observability.CLILogger.Warn("Stopped before the requested number of pages",
			zap.Int("pages_fetched", len(fetched)),
			zap.Error(fetchErr))
	}

	rendered, err := output.NewFormatter(dest.format).FormatPages(fetched)
	if err != nil {
		return err
	}
	if err := dest.write(rendered); err != nil {
		return err
	}
	return fetchErr
}

// collectPages fetches up to limit pages, following NextCursor. A limit of
// zero follows the cursor until the last page. Pages fetched before a
// failure are returned with the error.
func collectPages(ctx context.Context, fetcher pageFetcher, videoID string, opts core.FetchOptions, limit int) ([]*core.Page, error) {
	if fetcher == nil {
		return nil, errors.New("comment fetcher is not configured")
	}

	var pages []*core.Page
	seen := map[string]bool{}
	for limit == 0 || len(pages) < limit {
		page, err := fetcher.FetchPage(ctx, videoID, opts)
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)

		next := page.NextCursor
		if next == "" || seen[next] {
			break
		}
		seen[next] = true
		opts.PageCursor = next
	}
	return pages, nil
}
