package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"solbot/internal/analysis/indicator"
	"solbot/internal/analysis/performance"
	"solbot/internal/analysis/visual"
	"solbot/internal/ledger"
)

// Artifacts 记录导出文件路径，空字符串表示未生成。
type Artifacts struct {
	Summary string `json:"summary"`
	Fills   string `json:"fills"`
	Equity  string `json:"equity"`
	Chart   string `json:"chart,omitempty"`
}

type ExportOptions struct {
	Format     performance.Format
	Chart      bool
	Indicators indicator.Settings
}

// Export 把结果写入 dir/<run_id>/ 下：summary、fills.csv、equity.csv 和可选的 chart.html。
func Export(dir string, res *Result, opt ExportOptions) (Artifacts, error) {
	if res == nil {
		return Artifacts{}, fmt.Errorf("result 不能为空")
	}
	if opt.Format == "" {
		opt.Format = performance.FormatJSON
	}
	root := filepath.Join(dir, res.RunID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Artifacts{}, err
	}
	var art Artifacts

	art.Summary = filepath.Join(root, "summary."+string(opt.Format))
	if err := performance.WriteFile(art.Summary, res); err != nil {
		return art, fmt.Errorf("write summary: %w", err)
	}
	art.Fills = filepath.Join(root, "fills.csv")
	if err := writeCSVFile(art.Fills, func(w io.Writer) error { return WriteFillsCSV(w, res.Fills) }); err != nil {
		return art, fmt.Errorf("write fills: %w", err)
	}
	art.Equity = filepath.Join(root, "equity.csv")
	if err := writeCSVFile(art.Equity, func(w io.Writer) error { return WriteEquityCSV(w, res.Equity) }); err != nil {
		return art, fmt.Errorf("write equity: %w", err)
	}
	if opt.Chart && len(res.Prices) > 0 {
		art.Chart = filepath.Join(root, "chart.html")
		if err := visual.RenderFile(art.Chart, ChartInput(res, opt.Indicators)); err != nil {
			return art, fmt.Errorf("render chart: %w", err)
		}
	}
	return art, nil
}

// ChartInput maps a result onto the chart renderer.
func ChartInput(res *Result, settings indicator.Settings) visual.ChartInput {
	markers := make([]visual.Marker, 0, len(res.Fills))
	for _, f := range res.Fills {
		markers = append(markers, visual.Marker{Time: f.Timestamp, Side: string(f.Side), Price: f.FillPrice})
	}
	return visual.ChartInput{
		Title:    fmt.Sprintf("SOL %s | return %.2f%% | max dd %.2f%%", res.Name, res.Stats.ReturnPct, res.Stats.MaxDrawdownPct),
		Prices:   res.Prices,
		Fills:    markers,
		Equity:   res.Equity,
		Settings: settings,
	}
}

func writeCSVFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

var fillsHeader = []string{"seq", "timestamp", "side", "amount_sol", "fill_price", "mark_price", "fee", "slippage_pct", "realized_pnl", "fill_id"}

func WriteFillsCSV(w io.Writer, fills []ledger.Fill) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fillsHeader); err != nil {
		return err
	}
	for _, f := range fills {
		rec := []string{
			strconv.Itoa(f.Seq),
			f.Timestamp.UTC().Format(time.RFC3339),
			string(f.Side),
			ff(f.Amount),
			ff(f.FillPrice),
			ff(f.MarkPrice),
			ff(f.Fee),
			ff(f.SlippagePct),
			ff(f.RealizedPnL),
			f.ID,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteEquityCSV(w io.Writer, points []performance.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "total_value", "realized_pnl", "unrealized_pnl"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Time.UTC().Format(time.RFC3339), ff(p.TotalValue), ff(p.RealizedPnL), ff(p.UnrealizedPnL)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
