// Package backtest 把历史价格回放进与实盘相同的 Engine，并持久化、导出结果。
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"solbot/internal/analysis/indicator"
	"solbot/internal/analysis/performance"
	"solbot/internal/engine"
	"solbot/internal/execution"
	"solbot/internal/gateway/feed"
	"solbot/internal/logger"
	"solbot/internal/types"
)

// DefaultSeed 在未指定种子时使用，保证同一输入的回测结果可复现。
const DefaultSeed int64 = 42

var ErrNotEnoughPoints = errors.New("backtest needs more points than the warmup")

type Config struct {
	Name       string
	Source     string
	Engine     engine.Config
	Indicators indicator.Settings
	Warmup     int
	Seed       int64
}

type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Warmup < 0 {
		return nil, fmt.Errorf("%w: warmup must be >= 0", types.ErrConfigInvalid)
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	// 回测永远走模拟成交
	cfg.Engine.SimulationMode = true
	return &Runner{cfg: cfg}, nil
}

// Run seeds the engine with the first Warmup prices and steps through the rest.
func (r *Runner) Run(ctx context.Context, points []feed.PricePoint) (*Result, error) {
	if len(points) <= r.cfg.Warmup {
		return nil, fmt.Errorf("%w: %d points, warmup %d", ErrNotEnoughPoints, len(points), r.cfg.Warmup)
	}
	runID := uuid.NewString()
	engCfg := r.cfg.Engine
	engCfg.SessionID = runID

	var now time.Time
	eng, err := engine.New(engCfg, engine.Deps{
		Indicators: indicator.NewCalculator(r.cfg.Indicators),
		Slippage:   execution.NewRandomSlippage(engCfg.SlippageMinPct, engCfg.SlippageMaxPct, r.cfg.Seed),
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	warm := make([]float64, r.cfg.Warmup)
	for i := 0; i < r.cfg.Warmup; i++ {
		warm[i] = points[i].Price
	}
	eng.Seed(warm)

	res := &Result{
		RunID:     runID,
		Name:      r.cfg.Name,
		StartedAt: started,
		Points:    len(points),
		Config:    r.runConfig(eng),
	}
	if res.Name == "" {
		res.Name = "backtest-" + runID[:8]
	}
	stats := &res.Stats
	stats.StartingCash = eng.View().StartingCash

	for _, p := range points[r.cfg.Warmup:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now = p.Time
		rep := eng.Step(ctx, p.Price)
		if rep.Skipped {
			stats.Skipped++
			continue
		}
		res.Prices = append(res.Prices, performance.PricePoint{Time: p.Time, Price: p.Price})
		res.Equity = append(res.Equity, performance.EquityPoint{
			Time:          p.Time,
			TotalValue:    rep.Ledger.TotalValue,
			RealizedPnL:   rep.Ledger.RealizedPnL,
			UnrealizedPnL: rep.Ledger.UnrealizedPnL,
		})
		if rep.Breached {
			stats.Breaches++
		}
		if rep.Rejection != nil {
			stats.Rejections++
		}
		if rep.Fill != nil && rep.Intent == types.IntentLiquidateStop {
			stats.Stops++
		}
	}

	res.Fills = eng.Fills()
	res.Final = eng.View()
	if n := len(res.Prices); n > 0 {
		res.PeriodStart, res.PeriodEnd = res.Prices[0].Time, res.Prices[n-1].Time
	}
	r.summarize(res)
	res.Status = RunStatusDone
	res.FinishedAt = time.Now()

	logger.Infof("backtest[%s]: %d ticks, %d trades, return %.2f%%, max drawdown %.2f%%, win rate %.1f%%",
		res.Name, len(res.Prices), stats.Trades, stats.ReturnPct, stats.MaxDrawdownPct, stats.WinRatePct)
	return res, nil
}

func (r *Runner) runConfig(eng *engine.Engine) RunConfig {
	c := r.cfg.Engine
	return RunConfig{
		Source:             r.cfg.Source,
		TradingCapitalSOL:  c.Capital.TradingCapital,
		MaxPositionSizePct: c.Capital.MaxPositionPct,
		MaxDrawdownPct:     c.Capital.MaxDrawdownPct,
		StartingCash:       eng.View().StartingCash,
		FeeRate:            c.FeeRate,
		SlippageMinPct:     c.SlippageMinPct,
		SlippageMaxPct:     c.SlippageMaxPct,
		Warmup:             r.cfg.Warmup,
		Seed:               r.cfg.Seed,
	}
}

func (r *Runner) summarize(res *Result) {
	stats := &res.Stats
	stats.FinalValue = res.Final.TotalValue
	stats.Profit = stats.FinalValue - stats.StartingCash
	if stats.StartingCash > 0 {
		stats.ReturnPct = stats.Profit / stats.StartingCash * 100
	}
	stats.RealizedPnL = res.Final.RealizedPnL
	stats.FeesPaid = res.Final.FeesPaid
	stats.Trades = len(res.Fills)

	trades := res.Trades()
	ta := performance.AnalyzeTrades(trades)
	if set := ta.SimSet; set != nil {
		stats.Buys, stats.Sells = set.Buys, set.Sells
		stats.Wins, stats.Losses = set.Wins, set.Losses
		stats.WinRatePct = set.WinRatePct
	}

	values := make([]float64, 0, len(res.Equity)+1)
	values = append(values, stats.StartingCash)
	stats.EquityPeak, stats.EquityValley = stats.StartingCash, stats.StartingCash
	for _, e := range res.Equity {
		values = append(values, e.TotalValue)
		stats.EquityPeak = math.Max(stats.EquityPeak, e.TotalValue)
		stats.EquityValley = math.Min(stats.EquityValley, e.TotalValue)
	}
	stats.MaxDrawdownPct = performance.MaxDrawdownPct(values)

	res.Analytics.Trading = ta
	if pa, err := performance.AnalyzePrices(res.Prices); err == nil {
		res.Analytics.Price = &pa
	}
	if pf, err := performance.AnalyzePortfolio(res.Equity); err == nil {
		res.Analytics.Portfolio = &pf
	}
}
