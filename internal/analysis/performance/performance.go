// Package performance 计算价格、成交与组合净值的统计，供 report 与回测共用。
package performance

import (
	"errors"
	"math"
	"time"
)

var ErrNotEnoughData = errors.New("not enough data for analysis")

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

type PricePoint struct {
	Time  time.Time
	Price float64
}

type PriceAnalysis struct {
	DataPoints    int       `json:"data_points" yaml:"data_points"`
	PeriodStart   time.Time `json:"period_start" yaml:"period_start"`
	PeriodEnd     time.Time `json:"period_end" yaml:"period_end"`
	MinPrice      float64   `json:"min_price" yaml:"min_price"`
	MaxPrice      float64   `json:"max_price" yaml:"max_price"`
	AvgPrice      float64   `json:"avg_price" yaml:"avg_price"`
	CurrentPrice  float64   `json:"current_price" yaml:"current_price"`
	Change        float64   `json:"price_change" yaml:"price_change"`
	ChangePct     float64   `json:"price_change_pct" yaml:"price_change_pct"`
	Volatility    float64   `json:"volatility" yaml:"volatility"`
	VolatilityPct float64   `json:"volatility_pct" yaml:"volatility_pct"`
	Trend         Trend     `json:"trend" yaml:"trend"`
}

// AnalyzePrices 使用总体标准差衡量波动；趋势比较前后两半的均价。
func AnalyzePrices(points []PricePoint) (PriceAnalysis, error) {
	if len(points) < 2 {
		return PriceAnalysis{}, ErrNotEnoughData
	}
	out := PriceAnalysis{
		DataPoints:   len(points),
		PeriodStart:  points[0].Time,
		PeriodEnd:    points[len(points)-1].Time,
		MinPrice:     math.Inf(1),
		MaxPrice:     math.Inf(-1),
		CurrentPrice: points[len(points)-1].Price,
	}
	var sum float64
	for _, p := range points {
		sum += p.Price
		out.MinPrice = math.Min(out.MinPrice, p.Price)
		out.MaxPrice = math.Max(out.MaxPrice, p.Price)
	}
	n := float64(len(points))
	out.AvgPrice = sum / n
	first := points[0].Price
	out.Change = out.CurrentPrice - first
	if first > 0 {
		out.ChangePct = out.Change / first * 100
	}
	var variance float64
	for _, p := range points {
		d := p.Price - out.AvgPrice
		variance += d * d
	}
	out.Volatility = math.Sqrt(variance / n)
	if out.AvgPrice > 0 {
		out.VolatilityPct = out.Volatility / out.AvgPrice * 100
	}

	mid := len(points) / 2
	firstHalf, secondHalf := mean(points[:mid]), mean(points[mid:])
	out.Trend = TrendDown
	if secondHalf > firstHalf {
		out.Trend = TrendUp
	}
	return out, nil
}

func mean(points []PricePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var s float64
	for _, p := range points {
		s += p.Price
	}
	return s / float64(len(points))
}

// Trade 是分析所需的最小成交信息。
type Trade struct {
	Time        time.Time
	Side        string // buy / sell
	Amount      float64
	Price       float64
	Fee         float64
	RealizedPnL float64
	Simulated   bool
}

type TradeSet struct {
	Total        int     `json:"total_trades" yaml:"total_trades"`
	Buys         int     `json:"buy_trades" yaml:"buy_trades"`
	Sells        int     `json:"sell_trades" yaml:"sell_trades"`
	VolumeSOL    float64 `json:"total_volume_sol" yaml:"total_volume_sol"`
	VolumeQuote  float64 `json:"total_volume_quote" yaml:"total_volume_quote"`
	Fees         float64 `json:"total_fees" yaml:"total_fees"`
	AvgBuyPrice  float64 `json:"avg_buy_price" yaml:"avg_buy_price"`
	AvgSellPrice float64 `json:"avg_sell_price" yaml:"avg_sell_price"`
	AvgTradeSOL  float64 `json:"avg_trade_size_sol" yaml:"avg_trade_size_sol"`
	Wins         int     `json:"wins" yaml:"wins"`
	Losses       int     `json:"losses" yaml:"losses"`
	WinRatePct   float64 `json:"win_rate_pct" yaml:"win_rate_pct"`
	RealizedPnL  float64 `json:"realized_pnl" yaml:"realized_pnl"`
}

type TradeAnalysis struct {
	Total      int       `json:"total_trades" yaml:"total_trades"`
	Simulation int       `json:"simulation_trades" yaml:"simulation_trades"`
	Real       int       `json:"real_trades" yaml:"real_trades"`
	SimSet     *TradeSet `json:"simulation_analysis,omitempty" yaml:"simulation_analysis,omitempty"`
	RealSet    *TradeSet `json:"real_analysis,omitempty" yaml:"real_analysis,omitempty"`
}

// AnalyzeTrades splits simulated and real fills and summarises each set.
func AnalyzeTrades(trades []Trade) TradeAnalysis {
	var sim, real []Trade
	for _, t := range trades {
		if t.Simulated {
			sim = append(sim, t)
		} else {
			real = append(real, t)
		}
	}
	out := TradeAnalysis{Total: len(trades), Simulation: len(sim), Real: len(real)}
	if len(sim) > 0 {
		set := analyzeSet(sim)
		out.SimSet = &set
	}
	if len(real) > 0 {
		set := analyzeSet(real)
		out.RealSet = &set
	}
	return out
}

func analyzeSet(trades []Trade) TradeSet {
	out := TradeSet{Total: len(trades)}
	var buySum, sellSum float64
	for _, t := range trades {
		out.VolumeSOL += t.Amount
		out.VolumeQuote += t.Amount * t.Price
		out.Fees += t.Fee
		switch t.Side {
		case "buy":
			out.Buys++
			buySum += t.Price
		case "sell":
			out.Sells++
			sellSum += t.Price
			out.RealizedPnL += t.RealizedPnL
			if t.RealizedPnL > 0 {
				out.Wins++
			} else {
				out.Losses++
			}
		}
	}
	if out.Buys > 0 {
		out.AvgBuyPrice = buySum / float64(out.Buys)
	}
	if out.Sells > 0 {
		out.AvgSellPrice = sellSum / float64(out.Sells)
		out.WinRatePct = float64(out.Wins) / float64(out.Sells) * 100
	}
	out.AvgTradeSOL = out.VolumeSOL / float64(out.Total)
	return out
}

type EquityPoint struct {
	Time          time.Time
	TotalValue    float64
	RealizedPnL   float64
	UnrealizedPnL float64
}

type PortfolioAnalysis struct {
	Snapshots      int     `json:"snapshots_analyzed" yaml:"snapshots_analyzed"`
	InitialValue   float64 `json:"initial_value" yaml:"initial_value"`
	FinalValue     float64 `json:"final_value" yaml:"final_value"`
	TotalReturn    float64 `json:"total_return" yaml:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct" yaml:"total_return_pct"`
	RealizedPnL    float64 `json:"realized_pnl" yaml:"realized_pnl"`
	UnrealizedPnL  float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	TotalPnL       float64 `json:"total_pnl" yaml:"total_pnl"`
	MaxValue       float64 `json:"max_value" yaml:"max_value"`
	MinValue       float64 `json:"min_value" yaml:"min_value"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
}

func AnalyzePortfolio(points []EquityPoint) (PortfolioAnalysis, error) {
	if len(points) < 2 {
		return PortfolioAnalysis{}, ErrNotEnoughData
	}
	first, last := points[0], points[len(points)-1]
	out := PortfolioAnalysis{
		Snapshots:     len(points),
		InitialValue:  first.TotalValue,
		FinalValue:    last.TotalValue,
		TotalReturn:   last.TotalValue - first.TotalValue,
		RealizedPnL:   last.RealizedPnL,
		UnrealizedPnL: last.UnrealizedPnL,
		TotalPnL:      last.RealizedPnL + last.UnrealizedPnL,
		MaxValue:      math.Inf(-1),
		MinValue:      math.Inf(1),
	}
	if first.TotalValue > 0 {
		out.TotalReturnPct = out.TotalReturn / first.TotalValue * 100
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.TotalValue
		out.MaxValue = math.Max(out.MaxValue, p.TotalValue)
		out.MinValue = math.Min(out.MinValue, p.TotalValue)
	}
	out.MaxDrawdownPct = MaxDrawdownPct(values)
	return out, nil
}

// MaxDrawdownPct is the largest peak-to-trough decline of the series, in percent.
func MaxDrawdownPct(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
