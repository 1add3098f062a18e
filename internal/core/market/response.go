package market

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/insightdeck/insightdeck/internal/core"
)

type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// analysisDocument is the JSON object the model is asked to produce.
type analysisDocument struct {
	HistoricTrend     *trendDocument        `json:"historicTrend"`
	MarketShare       *distributionDocument `json:"marketShare"`
	Sentiment         *distributionDocument `json:"sentiment"`
	Regional          *distributionDocument `json:"regional"`
	Demographics      *distributionDocument `json:"demographics"`
	PriceDistribution *distributionDocument `json:"priceDistribution"`
}

type trendDocument struct {
	Title    string   `json:"title"`
	Labels   []string `json:"labels"`
	Datasets []Series `json:"datasets"`
}

type distributionDocument struct {
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// firstContent returns the text of the first choice.
func firstContent(resp *chatCompletionResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", &core.ValidationError{Problems: []string{"choices: required"}}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &core.ValidationError{Problems: []string{"choices[0].message.content: required"}}
	}
	return text, nil
}

// parseAnalysis decodes the model's JSON document and checks that all six charts
// are present and that every series has one value per label.
func parseAnalysis(query, text string) (*Analysis, error) {
	var doc analysisDocument
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &core.ValidationError{Problems: []string{"content: malformed JSON: " + err.Error()}}
	}

	var problems []string
	problem := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if doc.HistoricTrend == nil {
		problem("historicTrend: required")
	} else {
		if len(doc.HistoricTrend.Datasets) == 0 {
			problem("historicTrend.datasets: required")
		}
		for i, series := range doc.HistoricTrend.Datasets {
			if len(series.Data) != len(doc.HistoricTrend.Labels) {
				problem("historicTrend.datasets[%d].data: expected %d values, got %d", i, len(doc.HistoricTrend.Labels), len(series.Data))
			}
		}
	}

	charts := []struct {
		name string
		doc  *distributionDocument
	}{
		{"marketShare", doc.MarketShare},
		{"sentiment", doc.Sentiment},
		{"regional", doc.Regional},
		{"demographics", doc.Demographics},
		{"priceDistribution", doc.PriceDistribution},
	}
	for _, chart := range charts {
		switch {
		case chart.doc == nil:
			problem("%s: required", chart.name)
		case len(chart.doc.Data) != len(chart.doc.Labels):
			problem("%s.data: expected %d values, got %d", chart.name, len(chart.doc.Labels), len(chart.doc.Data))
		}
	}

	if len(problems) > 0 {
		return nil, &core.ValidationError{Problems: problems}
	}

	return &Analysis{
		Query: query,
		HistoricTrend: TrendChart{
			Title:    doc.HistoricTrend.Title,
			Labels:   doc.HistoricTrend.Labels,
			Datasets: doc.HistoricTrend.Datasets,
		},
		MarketShare:       doc.MarketShare.chart(),
		Sentiment:         doc.Sentiment.chart(),
		Regional:          doc.Regional.chart(),
		Demographics:      doc.Demographics.chart(),
		PriceDistribution: doc.PriceDistribution.chart(),
	}, nil
}

func (d *distributionDocument) chart() DistributionChart {
	return DistributionChart{Title: d.Title, Labels: d.Labels, Data: d.Data}
}
