// Package visual 用 go-echarts 把价格、布林带、成交点与净值曲线渲染成单页 HTML。
package visual

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"

	"solbot/internal/analysis/indicator"
	"solbot/internal/analysis/performance"
)

var ErrNoData = errors.New("no price data to chart")

type Marker struct {
	Time  time.Time
	Side  string // buy / sell
	Price float64
}

type ChartInput struct {
	Title    string
	Prices   []performance.PricePoint
	Fills    []Marker
	Equity   []performance.EquityPoint
	Settings indicator.Settings
}

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorPrice         = "#eceff4"
	colorEmaFast       = "#3b82f6"
	colorEmaSlow       = "#f472b6"
	colorBand          = "#fbbf24"
	colorEquity        = "#22d3ee"
	colorDrawdown      = "#fb7185"

	chartWidthPx    = 1600
	priceHeightPx   = 600
	equityHeightPx  = 320
	drawdownHeightP = 240
)

// Render writes the full chart page to w.
func Render(w io.Writer, in ChartInput) error {
	if len(in.Prices) == 0 {
		return ErrNoData
	}
	page := components.NewPage()
	page.PageTitle = chartTitle(in)
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildPriceChart(in))
	if len(in.Equity) > 0 {
		page.AddCharts(buildEquityChart(in.Equity), buildDrawdownChart(in.Equity))
	}
	return page.Render(w)
}

// RenderFile renders to path, creating parent directories.
func RenderFile(path string, in ChartInput) error {
	var buf bytes.Buffer
	if err := Render(&buf, in); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func chartTitle(in ChartInput) string {
	if t := strings.TrimSpace(in.Title); t != "" {
		return t
	}
	return "SOL"
}

func baseInit(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func buildPriceChart(in ChartInput) *charts.Line {
	closes := make([]float64, len(in.Prices))
	for i, p := range in.Prices {
		closes[i] = p.Price
	}
	minPrice, maxPrice := bounds(closes)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}
	xAxis := buildXAxis(pricesTimes(in.Prices))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(baseInit(priceHeightPx)),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         chartTitle(in),
			Subtitle:      priceSubtitle(in),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)
	line.AddSeries("Price", toLineData(closes, len(closes)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorPrice, Width: 2}))

	settings := indicator.NewCalculator(in.Settings).Settings()
	if len(closes) >= settings.EMASlow {
		line.AddSeries(fmt.Sprintf("EMA%d", settings.EMAFast), toLineData(talib.Ema(closes, settings.EMAFast), len(closes)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaFast, Width: 1}))
		line.AddSeries(fmt.Sprintf("EMA%d", settings.EMASlow), toLineData(talib.Ema(closes, settings.EMASlow), len(closes)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaSlow, Width: 1}))
	}
	if bands, ok := indicator.NewCalculator(in.Settings).Bands(closes); ok {
		bandStyle := charts.WithLineStyleOpts(opts.LineStyle{Color: colorBand, Width: 1, Type: "dashed", Opacity: opts.Float(0.7)})
		line.AddSeries("BB Upper", toLineData(bands.Upper, len(closes)), bandStyle)
		line.AddSeries("BB Lower", toLineData(bands.Lower, len(closes)), bandStyle)
	}

	if len(in.Fills) > 0 {
		buys, sells := markerSeries(in.Prices, in.Fills)
		scatter := charts.NewScatter()
		scatter.SetXAxis(xAxis)
		scatter.AddSeries("Buy", buys, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBull}))
		scatter.AddSeries("Sell", sells, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBear}))
		line.Overlap(scatter)
	}
	return line
}

func priceSubtitle(in ChartInput) string {
	first, last := in.Prices[0].Price, in.Prices[len(in.Prices)-1].Price
	change := 0.0
	if first > 0 {
		change = (last - first) / first * 100
	}
	var buys, sells int
	for _, f := range in.Fills {
		if f.Side == "sell" {
			sells++
		} else {
			buys++
		}
	}
	return fmt.Sprintf("%d ticks | %.2f → %.2f (%+.2f%%) | buys %d sells %d", len(in.Prices), first, last, change, buys, sells)
}

// markerSeries 把成交对齐到价格序列的下标（取不早于成交时间的第一个点）。
func markerSeries(prices []performance.PricePoint, fills []Marker) (buys, sells []opts.ScatterData) {
	buys = make([]opts.ScatterData, len(prices))
	sells = make([]opts.ScatterData, len(prices))
	for i := range prices {
		buys[i] = opts.ScatterData{Value: nil}
		sells[i] = opts.ScatterData{Value: nil}
	}
	for _, f := range fills {
		idx := sort.Search(len(prices), func(i int) bool { return !prices[i].Time.Before(f.Time) })
		if idx >= len(prices) {
			idx = len(prices) - 1
		}
		point := opts.ScatterData{Value: round(f.Price, 4), Symbol: "triangle", SymbolSize: 12}
		if f.Side == "sell" {
			point.SymbolRotate = 180
			sells[idx] = point
		} else {
			buys[idx] = point
		}
	}
	return buys, sells
}

func buildEquityChart(equity []performance.EquityPoint) *charts.Line {
	values := make([]float64, len(equity))
	times := make([]time.Time, len(equity))
	for i, e := range equity {
		values[i], times[i] = e.TotalValue, e.Time
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(baseInit(equityHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "Equity", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(buildXAxis(times))
	line.AddSeries("Total value", toLineData(values, len(values)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	return line
}

func buildDrawdownChart(equity []performance.EquityPoint) *charts.Line {
	dd := make([]float64, len(equity))
	times := make([]time.Time, len(equity))
	var peak float64
	for i, e := range equity {
		times[i] = e.Time
		if e.TotalValue > peak {
			peak = e.TotalValue
		}
		if peak > 0 {
			dd[i] = -(peak - e.TotalValue) / peak * 100
		}
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(baseInit(drawdownHeightP)),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	line.SetXAxis(buildXAxis(times))
	line.AddSeries("Drawdown", toLineData(dd, len(dd)),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 1}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorDrawdown, Opacity: opts.Float(0.25)}),
	)
	return line
}

func pricesTimes(points []performance.PricePoint) []time.Time {
	out := make([]time.Time, len(points))
	for i, p := range points {
		out[i] = p.Time
	}
	return out
}

func buildXAxis(times []time.Time) []string {
	x := make([]string, len(times))
	for i, t := range times {
		x[i] = t.UTC().Format("01-02 15:04:05")
	}
	return x
}

func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		val := series[i]
		if math.IsNaN(val) || math.IsInf(val, 0) {
			line[offset+i] = opts.LineData{Value: nil}
		} else {
			line[offset+i] = opts.LineData{Value: round(val, 4)}
		}
	}
	return line
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func bounds(values []float64) (minVal, maxVal float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minVal, maxVal = values[0], values[0]
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}
