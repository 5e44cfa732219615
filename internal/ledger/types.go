package ledger

import (
	"time"

	"solbot/internal/pkg/numeric"
	"solbot/internal/types"
)

// ClosingEpsilon 卖出后剩余数量低于该值时视为平仓。
const ClosingEpsilon = 1e-4

// Position 为当前唯一持仓，EntryPrice 为成交量加权平均成本。
type Position struct {
	EntryPrice float64   `json:"entry_price"`
	Amount     float64   `json:"amount"`
	OpenedAt   time.Time `json:"opened_at"`
}

// Unrealized returns (mark - entry) * amount; a nil position has none.
func (p *Position) Unrealized(mark float64) float64 {
	if p == nil || p.Amount <= 0 {
		return 0
	}
	return numeric.Mul(mark-p.EntryPrice, p.Amount)
}

func (p *Position) clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// State 是账本的权威状态，只由 Ledger 写入。
type State struct {
	CashBalance    float64   `json:"cash_balance"`
	Position       *Position `json:"position,omitempty"`
	PeakTotalValue float64   `json:"peak_total_value"`
	RealizedPnL    float64   `json:"realized_pnl"`
	FeesPaid       float64   `json:"fees_paid"`
	UnrealizedPnL  float64   `json:"unrealized_pnl"`
	MarkPrice      float64   `json:"mark_price"`
	// Version 每次成交提交后递增，用于拒绝基于过期快照的 Mutation。
	Version uint64 `json:"version"`
}

// Clone returns a deep copy; callers never share the Position pointer with the ledger.
func (s State) Clone() State {
	s.Position = s.Position.clone()
	return s
}

func (s State) PositionAmount() float64 {
	if s.Position == nil {
		return 0
	}
	return s.Position.Amount
}

// TotalValue is cash plus the position marked at the given price.
func (s State) TotalValue(mark float64) float64 {
	return numeric.Add(s.CashBalance, numeric.Mul(s.PositionAmount(), mark))
}

// Fill 是一次成交的不可变审计记录。
type Fill struct {
	ID          string     `json:"id"`
	Seq         int        `json:"seq"`
	Side        types.Side `json:"side"`
	Amount      float64    `json:"amount"`
	FillPrice   float64    `json:"fill_price"`
	MarkPrice   float64    `json:"mark_price"`
	Fee         float64    `json:"fee"`
	SlippagePct float64    `json:"slippage_pct"`
	RealizedPnL float64    `json:"realized_pnl"`
	Simulated   bool       `json:"simulated"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Mutation 是执行层基于某个 State 版本算出的成交结果，由 Ledger.Apply 原子提交。
type Mutation struct {
	BaseVersion   uint64
	Fill          Fill
	CashDelta     float64
	RealizedDelta float64
	// Position 为成交后的完整持仓，nil 表示平仓。
	Position *Position
}

// View 是对外暴露的只读快照。
type View struct {
	CashBalance           float64   `json:"cash_balance"`
	Position              *Position `json:"position,omitempty"`
	PositionAmount        float64   `json:"position_amount"`
	PositionValue         float64   `json:"position_value"`
	PeakTotalValue        float64   `json:"peak_total_value"`
	TotalValue            float64   `json:"total_value"`
	RealizedPnL           float64   `json:"realized_pnl"`
	UnrealizedPnL         float64   `json:"unrealized_pnl"`
	FeesPaid              float64   `json:"fees_paid"`
	MarkPrice             float64   `json:"mark_price"`
	DrawdownPct           float64   `json:"drawdown_pct"`
	CapitalUtilizationPct float64   `json:"capital_utilization_pct"`
	StartingCash          float64   `json:"starting_cash"`
	FillCount             int       `json:"fill_count"`
	Version               uint64    `json:"version"`
}
