// Package engine 串联信号仲裁、风控、资金管理、模拟成交与账本提交，
// 每次 Step 推进一个 tick，要么完整提交，要么不改变任何状态。
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"solbot/internal/capital"
	"solbot/internal/execution"
	"solbot/internal/ledger"
	"solbot/internal/logger"
	"solbot/internal/risk"
	"solbot/internal/strategy"
	"solbot/internal/types"

	"github.com/google/uuid"
)

const defaultHistoryLimit = 500

var ErrExecutionFailed = errors.New("on-chain execution failed")

type Config struct {
	SessionID      string
	Capital        types.CapitalConfig
	StartingCash   float64
	FeeRate        float64
	SlippageMinPct float64
	SlippageMaxPct float64
	SimulationMode bool
	HistoryLimit   int
	Thresholds     strategy.Thresholds
}

func (c Config) validate() error {
	if err := c.Capital.Validate(); err != nil {
		return err
	}
	if c.FeeRate < 0 {
		return fmt.Errorf("%w: fee rate must be >= 0", types.ErrConfigInvalid)
	}
	if c.SlippageMinPct < 0 || c.SlippageMaxPct > 100 || c.SlippageMinPct > c.SlippageMaxPct {
		return fmt.Errorf("%w: slippage range [%v,%v] outside [0,100]", types.ErrConfigInvalid, c.SlippageMinPct, c.SlippageMaxPct)
	}
	return nil
}

// Deps 为引擎的外部协作者。Slippage 为空时按配置区间随机抽取。
type Deps struct {
	Indicators IndicatorSource
	Slippage   execution.SlippageSource
	Executor   OnChainExecutor
	Clock      func() time.Time
}

type Engine struct {
	cfg Config

	arbiter    *strategy.Arbiter
	governor   *risk.Governor
	capital    *capital.Manager
	sim        *execution.Simulator
	ledger     *ledger.Ledger
	indicators IndicatorSource
	executor   OnChainExecutor
	now        func() time.Time

	history []float64
	seq     int
}

// New validates the configuration and wires one session's components.
// Any configuration problem is returned as types.ErrConfigInvalid.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Indicators == nil {
		return nil, fmt.Errorf("%w: indicator source is required", types.ErrConfigInvalid)
	}
	if !cfg.SimulationMode && deps.Executor == nil {
		return nil, fmt.Errorf("%w: live mode requires an on-chain executor", types.ErrConfigInvalid)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Slippage == nil {
		deps.Slippage = execution.NewRandomSlippage(cfg.SlippageMinPct, cfg.SlippageMaxPct, 0)
	}

	gov, err := risk.NewGovernor(cfg.Capital.MaxDrawdownPct)
	if err != nil {
		return nil, err
	}
	mgr, err := capital.NewManager(cfg.Capital, cfg.FeeRate, cfg.SlippageMaxPct)
	if err != nil {
		return nil, err
	}
	sim, err := execution.NewSimulator(cfg.FeeRate, deps.Slippage, execution.WithClock(deps.Clock))
	if err != nil {
		return nil, err
	}
	led, err := ledger.New(cfg.Capital, cfg.StartingCash)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		arbiter:    strategy.NewArbiter(cfg.Thresholds),
		governor:   gov,
		capital:    mgr,
		sim:        sim,
		ledger:     led,
		indicators: deps.Indicators,
		executor:   deps.Executor,
		now:        deps.Clock,
	}, nil
}

func (e *Engine) SessionID() string { return e.cfg.SessionID }

func (e *Engine) Simulation() bool { return e.cfg.SimulationMode }

// Seed appends warm-up prices to the history without trading.
func (e *Engine) Seed(prices []float64) {
	for _, p := range prices {
		if validPrice(p) {
			e.pushHistory(p)
		}
	}
}

// Step advances exactly one tick. Trade failures are reported, never returned:
// the caller keeps ticking.
func (e *Engine) Step(ctx context.Context, price float64) TickReport {
	e.seq++
	rep := TickReport{
		Seq:       e.seq,
		SessionID: e.cfg.SessionID,
		Time:      e.now(),
		Price:     price,
		Signal:    types.IntentHold,
		Intent:    types.IntentHold,
	}
	if !validPrice(price) {
		rep.Skipped = true
		rep.setErr(fmt.Errorf("%w: invalid price %v", types.ErrFeedUnavailable, price))
		rep.Ledger = e.ledger.View()
		return rep
	}

	e.pushHistory(price)
	if snap, ok := e.indicators.Compute(e.history); ok {
		rep.Indicators = &snap
		rep.Signal = e.arbiter.Decide(e.history, snap)
	}
	rep.Intent = rep.Signal

	// mark-to-market before any risk or capital decision
	peak, breached := e.governor.Check(e.ledger.State(), price)
	e.ledger.Mark(price, peak)
	rep.TotalBefore = e.ledger.State().TotalValue(price)
	rep.Breached = breached
	if breached && e.ledger.State().Position != nil {
		rep.Intent = types.IntentLiquidateStop
		logger.Warnf("engine[%s]: drawdown %.2f%% breached %.2f%%, liquidating", e.cfg.SessionID,
			e.governor.Drawdown(e.ledger.State(), price), e.governor.MaxDrawdownPct())
	}

	if rep.Intent != types.IntentHold {
		e.trade(ctx, &rep, price)
	}
	rep.Ledger = e.ledger.View()
	return rep
}

func (e *Engine) trade(ctx context.Context, rep *TickReport, price float64) {
	state := e.ledger.State()
	proposal, err := e.capital.SizeAndValidate(rep.Intent, state, price)
	if err != nil {
		var rej *capital.Rejection
		if errors.As(err, &rej) {
			rep.Rejection = rej
			logger.Infof("engine[%s]: %s rejected at %.4f: %s", e.cfg.SessionID, rep.Intent, price, rej.Reason)
			return
		}
		if !errors.Is(err, capital.ErrNoTrade) {
			rep.setErr(err)
		}
		return
	}

	mutation, err := e.execute(ctx, state, proposal)
	if err != nil {
		rep.setErr(err)
		logger.Warnf("engine[%s]: %s %.9f @ %.4f failed: %v", e.cfg.SessionID, proposal.Side, proposal.Amount, price, err)
		return
	}
	fill, err := e.ledger.Apply(mutation)
	if err != nil {
		rep.setErr(err)
		logger.Errorf("engine[%s]: ledger commit failed: %v", e.cfg.SessionID, err)
		return
	}
	rep.Fill = &fill
	logger.Infof("engine[%s]: %s %s %.9f SOL @ %.4f fee=%.6f slip=%.3f%% pnl=%.6f", e.cfg.SessionID,
		rep.Intent, fill.Side, fill.Amount, fill.FillPrice, fill.Fee, fill.SlippagePct, fill.RealizedPnL)
}

func (e *Engine) execute(ctx context.Context, state ledger.State, p capital.ProposedTrade) (ledger.Mutation, error) {
	if e.cfg.SimulationMode {
		return e.sim.Fill(state, p.Side, p.Amount, p.MarkPrice)
	}
	// 先确认账本能承受这笔成交，再走链上
	if _, err := e.sim.Book(state, p.Side, p.Amount, p.MarkPrice); err != nil {
		return ledger.Mutation{}, err
	}
	ok, err := e.executor.Execute(ctx, p.Side, p.Amount, p.MarkPrice)
	if err != nil {
		return ledger.Mutation{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	if !ok {
		return ledger.Mutation{}, ErrExecutionFailed
	}
	return e.sim.Book(state, p.Side, p.Amount, p.MarkPrice)
}

func (e *Engine) pushHistory(price float64) {
	e.history = append(e.history, price)
	if over := len(e.history) - e.cfg.HistoryLimit; over > 0 {
		e.history = append(e.history[:0], e.history[over:]...)
	}
}

func (e *Engine) History() []float64 {
	out := make([]float64, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) State() ledger.State { return e.ledger.State() }

func (e *Engine) View() ledger.View { return e.ledger.View() }

func (e *Engine) Fills() []ledger.Fill { return e.ledger.Fills() }

func (e *Engine) CapitalStatus() capital.Status {
	st := e.ledger.State()
	return e.capital.Status(st, st.MarkPrice)
}

func (e *Engine) CapitalSummary() capital.Summary { return e.capital.Summary() }

func (r *TickReport) setErr(err error) {
	if err == nil {
		return
	}
	r.Err = err
	r.Error = err.Error()
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
