package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/insightdeck/insightdeck/internal/core/playstore"
)

type analysisSection struct {
	Title string
	Lines []string
}

func insightSections(insights playstore.Insights) []analysisSection {
	var sections []analysisSection
	add := func(title string, lines []string) {
		if len(lines) > 0 {
			sections = append(sections, analysisSection{Title: title, Lines: lines})
		}
	}
	add("Positive highlights", insights.PositiveHighlights)
	add("Negative complaints", insights.NegativeComplaints)
	add("Feature suggestions", insights.FeatureSuggestions)
	return sections
}

func renderAnalysisSections(sections []analysisSection, markdown bool) string {
	if len(sections) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, section := range sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		if markdown {
			sb.WriteString(fmt.Sprintf("\n\n### %s\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("- %s\n", line))
			}
		} else {
			sb.WriteString(fmt.Sprintf("\n\n%s:\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("  %s\n", cellText(line)))
			}
		}
	}
	return sb.String()
}

// distributionTitles name the charts returned by market.Analysis.Distributions
// when the model left a title empty.
var distributionTitles = []string{"Market share", "Sentiment", "Regional", "Demographics", "Price distribution"}

func chartTitle(title, fallback string) string {
	if strings.TrimSpace(title) == "" {
		return fallback
	}
	return strings.TrimSpace(title)
}

func valueAt(data []float64, i int) float64 {
	if i < len(data) {
		return data[i]
	}
	return 0
}

func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// shareOf returns data[i] as a percentage of the series total.
func shareOf(data []float64, i int) string {
	var total float64
	for _, value := range data {
		total += value
	}
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", valueAt(data, i)/total*100)
}
