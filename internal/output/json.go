package output

import (
	"encoding/json"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/market"
	"github.com/insightdeck/insightdeck/internal/core/playstore"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatPages renders a single page as an object and several pages as an array.
func (f *JSONFormatter) FormatPages(pages []*core.Page) (string, error) {
	if len(pages) == 1 {
		return f.marshal(pages[0])
	}
	return f.marshal(pages)
}

// FormatAnalytics renders app analytics as JSON.
func (f *JSONFormatter) FormatAnalytics(analytics *playstore.AppAnalytics) (string, error) {
	if analytics == nil {
		return "", nil
	}
	return f.marshal(analytics)
}

// FormatMarket renders a market analysis as JSON.
func (f *JSONFormatter) FormatMarket(analysis *market.Analysis) (string, error) {
	if analysis == nil {
		return "", nil
	}
	return f.marshal(analysis)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
