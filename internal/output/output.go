package output

import (
	"fmt"
	"strings"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/market"
	"github.com/insightdeck/insightdeck/internal/core/playstore"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders fetched comment pages, app analytics and market analyses.
type Formatter interface {
	FormatPages(pages []*core.Page) (string, error)
	FormatAnalytics(analytics *playstore.AppAnalytics) (string, error)
	FormatMarket(analysis *market.Analysis) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// flatten joins the comments of every non-nil page in order.
func flatten(pages []*core.Page) []core.Comment {
	var comments []core.Comment
	for _, page := range pages {
		if page == nil {
			continue
		}
		comments = append(comments, page.Comments...)
	}
	return comments
}

// summary describes a run of pages: how many comments were fetched, the
// upstream total and the cursor to resume from.
func summary(pages []*core.Page) string {
	var (
		total int64
		last  *core.Page
	)
	for _, page := range pages {
		if page == nil {
			continue
		}
		last = page
		if page.TotalResults > total {
			total = page.TotalResults
		}
	}

	text := fmt.Sprintf("%d comments (total %d)", len(flatten(pages)), total)
	if last != nil && last.NextCursor != "" {
		text += ", next page: " + last.NextCursor
	}
	return text
}
