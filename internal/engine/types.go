package engine

import (
	"context"
	"time"

	"solbot/internal/capital"
	"solbot/internal/ledger"
	"solbot/internal/types"
)

// IndicatorSource computes the snapshot for a price history; false means not enough data.
type IndicatorSource interface {
	Compute(history []float64) (types.IndicatorSnapshot, bool)
}

// OnChainExecutor is the real-money path, used only when simulation is disabled.
type OnChainExecutor interface {
	Execute(ctx context.Context, side types.Side, amount, price float64) (bool, error)
}

// PriceSource supplies one resolved price per tick; types.ErrFeedUnavailable skips the tick.
type PriceSource interface {
	Name() string
	Price(ctx context.Context) (float64, error)
}

// Observer receives every committed tick report, after the tick completes.
type Observer interface {
	OnTick(ctx context.Context, rep TickReport)
}

type ObserverFunc func(ctx context.Context, rep TickReport)

func (f ObserverFunc) OnTick(ctx context.Context, rep TickReport) { f(ctx, rep) }

// TickReport 是每个 tick 对外输出的结果，用于日志、持久化与通知。
type TickReport struct {
	Seq         int                      `json:"seq"`
	SessionID   string                   `json:"session_id"`
	Time        time.Time                `json:"time"`
	Price       float64                  `json:"price"`
	Signal      types.Intent             `json:"signal"`
	Intent      types.Intent             `json:"intent"`
	Indicators  *types.IndicatorSnapshot `json:"indicators,omitempty"`
	Breached    bool                     `json:"breached"`
	// TotalBefore 为本 tick 成交前按当前价格计算的总价值。
	TotalBefore float64                  `json:"total_before"`
	Fill        *ledger.Fill             `json:"fill,omitempty"`
	Rejection   *capital.Rejection       `json:"rejection,omitempty"`
	Skipped     bool                     `json:"skipped,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Ledger      ledger.View              `json:"ledger"`

	Err error `json:"-"`
}

// Traded reports whether the tick committed a fill.
func (r TickReport) Traded() bool { return r.Fill != nil }
