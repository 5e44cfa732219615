package visual

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solbot/internal/analysis/indicator"
	"solbot/internal/analysis/performance"
)

func sampleInput(n int) ChartInput {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := ChartInput{Title: "SOL backtest", Settings: indicator.DefaultSettings()}
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		price := 150 + 5*math.Sin(float64(i)/6)
		in.Prices = append(in.Prices, performance.PricePoint{Time: ts, Price: price})
		in.Equity = append(in.Equity, performance.EquityPoint{Time: ts, TotalValue: 1000 + float64(i%7)})
	}
	if n < 2 {
		return in
	}
	buy, sell := n/4, n*3/4
	in.Fills = []Marker{
		{Time: in.Prices[buy].Time, Side: "buy", Price: in.Prices[buy].Price},
		{Time: in.Prices[sell].Time, Side: "sell", Price: in.Prices[sell].Price},
	}
	return in
}

func TestRenderWritesHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleInput(80)))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "SOL backtest")
	assert.Contains(t, html, "BB Upper")
	assert.Contains(t, html, "Drawdown")
}

func TestRenderShortSeriesSkipsIndicators(t *testing.T) {
	in := sampleInput(5)
	in.Fills = nil
	in.Equity = nil
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, in))
	assert.NotContains(t, buf.String(), "BB Upper")
}

func TestRenderShortSeriesWithMarkers(t *testing.T) {
	in := sampleInput(5)
	require.Len(t, in.Fills, 2)
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, in))
	html := buf.String()
	assert.Contains(t, html, "Buy")
	assert.NotContains(t, html, "BB Upper")

	buys, sells := markerSeries(in.Prices, in.Fills)
	assert.NotNil(t, buys[1].Value)
	assert.NotNil(t, sells[3].Value)
}

func TestRenderRequiresPrices(t *testing.T) {
	assert.ErrorIs(t, Render(&bytes.Buffer{}, ChartInput{}), ErrNoData)
}

func TestMarkerSeriesAlignsToNextTick(t *testing.T) {
	in := sampleInput(20)
	fills := []Marker{
		{Time: in.Prices[3].Time.Add(-time.Second), Side: "buy", Price: 1},
		{Time: in.Prices[19].Time.Add(time.Hour), Side: "sell", Price: 2},
	}
	buys, sells := markerSeries(in.Prices, fills)
	assert.Equal(t, 1.0, buys[3].Value)
	assert.Nil(t, buys[2].Value)
	assert.Equal(t, 2.0, sells[19].Value)
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chart.html")
	require.NoError(t, RenderFile(path, sampleInput(30)))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestToLineDataPadsAndDropsNaN(t *testing.T) {
	data := toLineData([]float64{math.NaN(), 1.23456}, 4)
	require.Len(t, data, 4)
	assert.Nil(t, data[0].Value)
	assert.Nil(t, data[2].Value)
	assert.Equal(t, 1.2346, data[3].Value)
}
