// Package execution 模拟成交：手续费、不利方向滑点、加权平均成本与已实现盈亏。
package execution

import (
	"errors"
	"fmt"
	"time"

	"solbot/internal/ledger"
	"solbot/internal/pkg/numeric"
	"solbot/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultFeeRate is 0.25%.
const DefaultFeeRate = 0.0025

var ErrInvalidOrder = errors.New("invalid order")

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// Simulator 按会话构造，不共享可变状态。
type Simulator struct {
	feeRate  float64
	slippage SlippageSource
	now      func() time.Time
	newID    func() string
}

type Option func(*Simulator)

// WithClock overrides the timestamp source for fills.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSimulator(feeRate float64, slippage SlippageSource, opts ...Option) (*Simulator, error) {
	if feeRate < 0 {
		return nil, fmt.Errorf("%w: fee rate must be >= 0, got %v", types.ErrConfigInvalid, feeRate)
	}
	if slippage == nil {
		slippage = FixedSlippage(0)
	}
	s := &Simulator{
		feeRate:  feeRate,
		slippage: slippage,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Simulator) FeeRate() float64 { return s.feeRate }

// Fill simulates one trade against the given state with a freshly drawn slippage.
func (s *Simulator) Fill(state ledger.State, side types.Side, amount, mark float64) (ledger.Mutation, error) {
	return s.fill(state, side, amount, mark, s.slippage.Draw(), true)
}

// Book records a trade executed elsewhere (on-chain) at the given price, without slippage.
func (s *Simulator) Book(state ledger.State, side types.Side, amount, price float64) (ledger.Mutation, error) {
	return s.fill(state, side, amount, price, 0, false)
}

func (s *Simulator) fill(state ledger.State, side types.Side, amount, mark, slipPct float64, simulated bool) (ledger.Mutation, error) {
	if amount <= 0 || mark <= 0 {
		return ledger.Mutation{}, fmt.Errorf("%w: amount=%v mark=%v", ErrInvalidOrder, amount, mark)
	}
	if slipPct < 0 {
		slipPct = 0
	}
	amt := numeric.Dec(amount)
	slip := numeric.Dec(slipPct).Div(decHundred)
	fee := amt.Mul(numeric.Dec(s.feeRate))

	fill := ledger.Fill{
		ID:          s.newID(),
		Side:        side,
		Amount:      amount,
		MarkPrice:   mark,
		Fee:         numeric.Float(fee),
		SlippagePct: slipPct,
		Simulated:   simulated,
		Timestamp:   s.now(),
	}

	switch side {
	case types.SideBuy:
		price := numeric.Dec(mark).Mul(decOne.Add(slip))
		cost := amt.Mul(price).Add(fee)
		if numeric.Dec(state.CashBalance).Cmp(cost) < 0 {
			return ledger.Mutation{}, fmt.Errorf("%w: need %s, have %v", types.ErrInsufficientCash, cost.StringFixed(9), state.CashBalance)
		}
		fill.FillPrice = numeric.Float(price)
		return ledger.Mutation{
			BaseVersion: state.Version,
			Fill:        fill,
			CashDelta:   numeric.Float(cost.Neg()),
			Position:    averageIn(state.Position, amt, price, fill.Timestamp),
		}, nil

	case types.SideSell:
		pos := state.Position
		if pos == nil || numeric.Dec(pos.Amount).Cmp(amt) < 0 {
			return ledger.Mutation{}, fmt.Errorf("%w: want %v, have %v", types.ErrInsufficientPosition, amount, state.PositionAmount())
		}
		price := numeric.Dec(mark).Mul(decOne.Sub(slip))
		entry := numeric.Dec(pos.EntryPrice)
		realized := amt.Mul(price.Sub(entry))
		proceeds := amt.Mul(price).Sub(fee)

		var next *ledger.Position
		remaining := numeric.Dec(pos.Amount).Sub(amt)
		if remaining.Cmp(numeric.Dec(ledger.ClosingEpsilon)) < 0 {
			// 残量按成本价计入已实现盈亏，保证对账恒等式成立
			realized = realized.Sub(remaining.Mul(entry))
		} else {
			next = &ledger.Position{
				EntryPrice: pos.EntryPrice,
				Amount:     numeric.Float(remaining),
				OpenedAt:   pos.OpenedAt,
			}
		}
		fill.FillPrice = numeric.Float(price)
		fill.RealizedPnL = numeric.Float(realized)
		return ledger.Mutation{
			BaseVersion:   state.Version,
			Fill:          fill,
			CashDelta:     numeric.Float(proceeds),
			RealizedDelta: fill.RealizedPnL,
			Position:      next,
		}, nil

	default:
		return ledger.Mutation{}, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, side)
	}
}

// averageIn returns the position after buying amt at price, re-averaging the entry.
func averageIn(pos *ledger.Position, amt, price decimal.Decimal, at time.Time) *ledger.Position {
	if pos == nil || pos.Amount <= 0 {
		return &ledger.Position{
			EntryPrice: numeric.Float(price),
			Amount:     numeric.Float(amt),
			OpenedAt:   at,
		}
	}
	oldAmt := numeric.Dec(pos.Amount)
	total := oldAmt.Add(amt)
	entry := numeric.Dec(pos.EntryPrice).Mul(oldAmt).Add(price.Mul(amt)).Div(total)
	return &ledger.Position{
		EntryPrice: numeric.Float(entry),
		Amount:     numeric.Float(total),
		OpenedAt:   pos.OpenedAt,
	}
}
