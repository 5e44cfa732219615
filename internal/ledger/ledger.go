package ledger

import (
	"errors"
	"fmt"

	"solbot/internal/pkg/numeric"
	"solbot/internal/types"
)

// ErrStaleMutation is returned when a mutation was computed from an older state.
var ErrStaleMutation = errors.New("mutation based on stale ledger state")

// Ledger 是余额、持仓、峰值与累计盈亏的唯一写入方。
// 非并发安全：同一会话内由 engine 串行驱动。
type Ledger struct {
	capital      types.CapitalConfig
	startingCash float64
	state        State
	fills        []Fill
}

// New creates the ledger for one run. A non-positive startingCash falls back to
// the trading capital; the peak starts at the starting cash.
func New(capital types.CapitalConfig, startingCash float64) (*Ledger, error) {
	if err := capital.Validate(); err != nil {
		return nil, err
	}
	if startingCash <= 0 {
		startingCash = capital.TradingCapital
	}
	return &Ledger{
		capital:      capital,
		startingCash: startingCash,
		state: State{
			CashBalance:    startingCash,
			PeakTotalValue: startingCash,
		},
	}, nil
}

func (l *Ledger) Capital() types.CapitalConfig { return l.capital }

func (l *Ledger) StartingCash() float64 { return l.startingCash }

// State returns a deep copy of the current state.
func (l *Ledger) State() State {
	return l.state.Clone()
}

// Mark refreshes mark price and unrealized P&L, and raises the peak to the
// given value. The peak never decreases.
func (l *Ledger) Mark(mark, peak float64) {
	if mark > 0 {
		l.state.MarkPrice = mark
	}
	l.state.UnrealizedPnL = l.state.Position.Unrealized(l.state.MarkPrice)
	if numeric.GT(peak, l.state.PeakTotalValue) {
		l.state.PeakTotalValue = peak
	}
}

// Apply validates a mutation against the current state and commits it in full,
// or leaves the state untouched and returns an error.
func (l *Ledger) Apply(m Mutation) (Fill, error) {
	if m.BaseVersion != l.state.Version {
		return Fill{}, fmt.Errorf("%w: base=%d current=%d", ErrStaleMutation, m.BaseVersion, l.state.Version)
	}
	if m.Fill.Amount <= 0 {
		return Fill{}, fmt.Errorf("fill amount must be > 0, got %v", m.Fill.Amount)
	}
	if m.Fill.Fee < 0 {
		return Fill{}, fmt.Errorf("fill fee must be >= 0, got %v", m.Fill.Fee)
	}
	nextCash := numeric.Add(l.state.CashBalance, m.CashDelta)
	if nextCash < 0 {
		return Fill{}, fmt.Errorf("%w: cash would be %v", types.ErrInsufficientCash, nextCash)
	}
	if m.Position != nil && m.Position.Amount <= 0 {
		return Fill{}, fmt.Errorf("%w: position amount %v", types.ErrInsufficientPosition, m.Position.Amount)
	}

	next := l.state
	next.CashBalance = nextCash
	next.Position = m.Position.clone()
	next.RealizedPnL = numeric.Add(next.RealizedPnL, m.RealizedDelta)
	next.FeesPaid = numeric.Add(next.FeesPaid, m.Fill.Fee)
	next.UnrealizedPnL = next.Position.Unrealized(next.MarkPrice)
	if total := next.TotalValue(next.MarkPrice); next.MarkPrice > 0 && numeric.GT(total, next.PeakTotalValue) {
		next.PeakTotalValue = total
	}
	next.Version++

	fill := m.Fill
	fill.Seq = len(l.fills) + 1
	l.state = next
	l.fills = append(l.fills, fill)
	return fill, nil
}

// Fills returns a copy of the append-only audit trail.
func (l *Ledger) Fills() []Fill {
	out := make([]Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

func (l *Ledger) View() View {
	return NewView(l.state, l.capital, l.startingCash, len(l.fills))
}

// NewView derives the read-only view of a state.
func NewView(s State, capital types.CapitalConfig, startingCash float64, fillCount int) View {
	amount := s.PositionAmount()
	total := s.TotalValue(s.MarkPrice)
	drawdown := 0.0
	if numeric.GT(s.PeakTotalValue, total) {
		drawdown = numeric.PercentOf(s.PeakTotalValue-total, s.PeakTotalValue)
	}
	return View{
		CashBalance:           s.CashBalance,
		Position:              s.Position.clone(),
		PositionAmount:        amount,
		PositionValue:         numeric.Mul(amount, s.MarkPrice),
		PeakTotalValue:        s.PeakTotalValue,
		TotalValue:            total,
		RealizedPnL:           s.RealizedPnL,
		UnrealizedPnL:         s.UnrealizedPnL,
		FeesPaid:              s.FeesPaid,
		MarkPrice:             s.MarkPrice,
		DrawdownPct:           drawdown,
		CapitalUtilizationPct: numeric.PercentOf(amount, capital.TradingCapital),
		StartingCash:          startingCash,
		FillCount:             fillCount,
		Version:               s.Version,
	}
}
