package backtest

import (
	"time"

	"solbot/internal/analysis/performance"
	"solbot/internal/ledger"
)

const (
	RunStatusDone   = "done"
	RunStatusFailed = "failed"
)

// RunConfig 记录本次回测的参数快照，便于重放。
type RunConfig struct {
	Source             string  `json:"source" yaml:"source"`
	TradingCapitalSOL  float64 `json:"trading_capital_sol" yaml:"trading_capital_sol"`
	MaxPositionSizePct float64 `json:"max_position_size_pct" yaml:"max_position_size_pct"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	StartingCash       float64 `json:"starting_cash" yaml:"starting_cash"`
	FeeRate            float64 `json:"fee_rate" yaml:"fee_rate"`
	SlippageMinPct     float64 `json:"slippage_min_pct" yaml:"slippage_min_pct"`
	SlippageMaxPct     float64 `json:"slippage_max_pct" yaml:"slippage_max_pct"`
	Warmup             int     `json:"warmup" yaml:"warmup"`
	Seed               int64   `json:"seed" yaml:"seed"`
}

// RunStats 汇总收益与风控指标。
type RunStats struct {
	StartingCash   float64 `json:"starting_cash" yaml:"starting_cash"`
	FinalValue     float64 `json:"final_value" yaml:"final_value"`
	Profit         float64 `json:"profit" yaml:"profit"`
	ReturnPct      float64 `json:"return_pct" yaml:"return_pct"`
	Trades         int     `json:"trades" yaml:"trades"`
	Buys           int     `json:"buys" yaml:"buys"`
	Sells          int     `json:"sells" yaml:"sells"`
	Wins           int     `json:"wins" yaml:"wins"`
	Losses         int     `json:"losses" yaml:"losses"`
	WinRatePct     float64 `json:"win_rate_pct" yaml:"win_rate_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	RealizedPnL    float64 `json:"realized_pnl" yaml:"realized_pnl"`
	FeesPaid       float64 `json:"fees_paid" yaml:"fees_paid"`
	Rejections     int     `json:"rejections" yaml:"rejections"`
	Stops          int     `json:"stops" yaml:"stops"`
	Breaches       int     `json:"breach_ticks" yaml:"breach_ticks"`
	Skipped        int     `json:"skipped_ticks" yaml:"skipped_ticks"`
	EquityPeak     float64 `json:"equity_peak" yaml:"equity_peak"`
	EquityValley   float64 `json:"equity_valley" yaml:"equity_valley"`
}

type Analytics struct {
	Price     *performance.PriceAnalysis     `json:"price,omitempty" yaml:"price,omitempty"`
	Trading   performance.TradeAnalysis      `json:"trading" yaml:"trading"`
	Portfolio *performance.PortfolioAnalysis `json:"portfolio,omitempty" yaml:"portfolio,omitempty"`
}

// Result 是一次完整回测的输出。
type Result struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	Name        string        `json:"name" yaml:"name"`
	Status      string        `json:"status" yaml:"status"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time     `json:"finished_at" yaml:"finished_at"`
	PeriodStart time.Time     `json:"period_start" yaml:"period_start"`
	PeriodEnd   time.Time     `json:"period_end" yaml:"period_end"`
	Points      int           `json:"points" yaml:"points"`
	Config      RunConfig     `json:"config" yaml:"config"`
	Stats       RunStats      `json:"stats" yaml:"stats"`
	Analytics   Analytics     `json:"analytics" yaml:"analytics"`
	Final       ledger.View   `json:"final_ledger" yaml:"final_ledger"`
	Fills       []ledger.Fill `json:"fills" yaml:"fills"`

	// Prices 与 Equity 另存为 CSV 与图表
	Prices []performance.PricePoint  `json:"-" yaml:"-"`
	Equity []performance.EquityPoint `json:"-" yaml:"-"`
}

// Trades converts the fills into the analytics representation.
func (r *Result) Trades() []performance.Trade {
	out := make([]performance.Trade, 0, len(r.Fills))
	for _, f := range r.Fills {
		out = append(out, TradeOf(f))
	}
	return out
}

func TradeOf(f ledger.Fill) performance.Trade {
	return performance.Trade{
		Time:        f.Timestamp,
		Side:        string(f.Side),
		Amount:      f.Amount,
		Price:       f.FillPrice,
		Fee:         f.Fee,
		RealizedPnL: f.RealizedPnL,
		Simulated:   f.Simulated,
	}
}
