package market

// Analysis is the chart data generated for one market query.
type Analysis struct {
	Query             string            `json:"query"`
	HistoricTrend     TrendChart        `json:"historic_trend"`
	MarketShare       DistributionChart `json:"market_share"`
	Sentiment         DistributionChart `json:"sentiment"`
	Regional          DistributionChart `json:"regional"`
	Demographics      DistributionChart `json:"demographics"`
	PriceDistribution DistributionChart `json:"price_distribution"`
}

// TrendChart is a line chart: one or more series over shared labels.
type TrendChart struct {
	Title    string   `json:"title"`
	Labels   []string `json:"labels"`
	Datasets []Series `json:"datasets"`
}

// Series is one line of a TrendChart.
type Series struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// DistributionChart is a single-series chart with one value per label.
type DistributionChart struct {
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// Distributions returns the five single-series charts in display order.
func (a *Analysis) Distributions() []DistributionChart {
	if a == nil {
		return nil
	}
	return []DistributionChart{a.MarketShare, a.Sentiment, a.Regional, a.Demographics, a.PriceDistribution}
}
