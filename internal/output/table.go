package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/market"
	"github.com/insightdeck/insightdeck/internal/core/playstore"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatPages renders comments from one or more pages as a table.
func (f *TableFormatter) FormatPages(pages []*core.Page) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Author", "Likes", "Published", "Comment"})

	for _, c := range flatten(pages) {
		t.AppendRow(table.Row{
			displayAuthor(c.Author),
			c.Likes,
			publishedLabel(c.PublishedDate),
			cellText(c.Text),
		})
	}

	return t.Render() + "\n" + summary(pages), nil
}

// FormatAnalytics renders app analytics as a summary table, a review table
// and insight sections.
func (f *TableFormatter) FormatAnalytics(analytics *playstore.AppAnalytics) (string, error) {
	if analytics == nil {
		return "", nil
	}

	head := table.NewWriter()
	head.SetStyle(table.StyleRounded)
	head.AppendHeader(table.Row{"App", "Rating", "Reviews"})
	head.AppendRow(table.Row{analytics.AppName, fmt.Sprintf("%.1f", analytics.OverallRating), analytics.TotalReviews})
	rendered := head.Render()

	if len(analytics.TopReviews) > 0 {
		reviews := table.NewWriter()
		reviews.SetStyle(table.StyleRounded)
		reviews.AppendHeader(table.Row{"User", "Rating", "Date", "Review"})
		for _, r := range analytics.TopReviews {
			reviews.AppendRow(table.Row{displayAuthor(r.Username), r.Rating, r.Date, cellText(r.Comment)})
		}
		rendered += "\n" + reviews.Render()
	}

	rendered += renderAnalysisSections(insightSections(analytics.Insights), false)
	return rendered, nil
}

// FormatMarket renders the trend series as one table and every distribution
// chart as its own table with shares.
func (f *TableFormatter) FormatMarket(analysis *market.Analysis) (string, error) {
	if analysis == nil {
		return "", nil
	}

	trend := table.NewWriter()
	trend.SetStyle(table.StyleRounded)
	trend.SetTitle("%s", chartTitle(analysis.HistoricTrend.Title, "Historic trend"))
	header := table.Row{"Period"}
	for _, series := range analysis.HistoricTrend.Datasets {
		header = append(header, series.Label)
	}
	trend.AppendHeader(header)
	for i, label := range analysis.HistoricTrend.Labels {
		row := table.Row{label}
		for _, series := range analysis.HistoricTrend.Datasets {
			row = append(row, formatValue(valueAt(series.Data, i)))
		}
		trend.AppendRow(row)
	}
	rendered := trend.Render()

	for i, chart := range analysis.Distributions() {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetTitle("%s", chartTitle(chart.Title, distributionTitles[i]))
		t.AppendHeader(table.Row{"Label", "Value", "Share"})
		for j, label := range chart.Labels {
			t.AppendRow(table.Row{label, formatValue(valueAt(chart.Data, j)), shareOf(chart.Data, j)})
		}
		rendered += "\n" + t.Render()
	}
	return rendered, nil
}
