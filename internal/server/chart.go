package server

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/models"
)

// renderPriceChart renders a PNG line chart of the historical price
// series. Returns raw PNG bytes.
func renderPriceChart(coinID string, days int, data *models.MarketChart) ([]byte, error) {
	if len(data.Prices) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(data.Prices))
	}

	xValues := make([]time.Time, len(data.Prices))
	yValues := make([]float64, len(data.Prices))
	for i, p := range data.Prices {
		xValues[i] = p.Timestamp
		yValues[i] = p.Value
	}

	priceSeries := chart.TimeSeries{
		Name: coinID,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.0,
		},
		XValues: xValues,
		YValues: yValues,
	}

	timeFormat := "Jan 2"
	if days <= 1 {
		timeFormat = "15:04"
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (last %dd)", coinID, days),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(timeFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return common.FormatUSD(f)
				}
				return ""
			},
		},
		Series: []chart.Series{priceSeries},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
