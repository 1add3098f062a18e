package output

import (
	"fmt"
	"strings"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/market"
	"github.com/insightdeck/insightdeck/internal/core/playstore"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatPages renders comments as a Markdown table.
func (f *MarkdownFormatter) FormatPages(pages []*core.Page) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Author | Likes | Published | Comment |\n")
	sb.WriteString("|--------|-------|-----------|---------|\n")

	for _, c := range flatten(pages) {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
			escapeMarkdownCell(displayAuthor(c.Author)),
			c.Likes,
			escapeMarkdownCell(publishedLabel(c.PublishedDate)),
			escapeMarkdownCell(strings.Join(strings.Fields(c.Text), " ")),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summary(pages)))
	return sb.String(), nil
}

// FormatAnalytics renders app analytics as Markdown.
func (f *MarkdownFormatter) FormatAnalytics(analytics *playstore.AppAnalytics) (string, error) {
	if analytics == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(analytics.AppName)))
	sb.WriteString(fmt.Sprintf("**Rating**: %.1f from %d reviews\n", analytics.OverallRating, analytics.TotalReviews))

	if len(analytics.TopReviews) > 0 {
		sb.WriteString("\n| User | Rating | Date | Review |\n")
		sb.WriteString("|------|--------|------|--------|\n")
		for _, r := range analytics.TopReviews {
			sb.WriteString(fmt.Sprintf("| %s | %g | %s | %s |\n",
				escapeMarkdownCell(displayAuthor(r.Username)),
				r.Rating,
				escapeMarkdownCell(r.Date),
				escapeMarkdownCell(strings.Join(strings.Fields(r.Comment), " ")),
			))
		}
	}

	sb.WriteString(renderAnalysisSections(insightSections(analytics.Insights), true))
	return sb.String(), nil
}

// FormatMarket renders a market analysis as Markdown tables.
func (f *MarkdownFormatter) FormatMarket(analysis *market.Analysis) (string, error) {
	if analysis == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Market analysis: %s\n", escapeMarkdownCell(analysis.Query)))

	trend := analysis.HistoricTrend
	sb.WriteString(fmt.Sprintf("\n### %s\n\n", chartTitle(trend.Title, "Historic trend")))
	sb.WriteString("| Period |")
	for _, series := range trend.Datasets {
		sb.WriteString(fmt.Sprintf(" %s |", escapeMarkdownCell(series.Label)))
	}
	sb.WriteString("\n|--------|" + strings.Repeat("------|", len(trend.Datasets)) + "\n")
	for i, label := range trend.Labels {
		sb.WriteString(fmt.Sprintf("| %s |", escapeMarkdownCell(label)))
		for _, series := range trend.Datasets {
			sb.WriteString(fmt.Sprintf(" %s |", formatValue(valueAt(series.Data, i))))
		}
		sb.WriteString("\n")
	}

	for i, chart := range analysis.Distributions() {
		sb.WriteString(fmt.Sprintf("\n### %s\n\n", chartTitle(chart.Title, distributionTitles[i])))
		sb.WriteString("| Label | Value | Share |\n")
		sb.WriteString("|-------|-------|-------|\n")
		for j, label := range chart.Labels {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				escapeMarkdownCell(label),
				formatValue(valueAt(chart.Data, j)),
				shareOf(chart.Data, j),
			))
		}
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
