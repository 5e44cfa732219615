package notifier

import (
	"context"
	"time"

	"solbot/internal/engine"
	"solbot/internal/logger"
	"solbot/internal/types"
)

// TickObserver 把成交、回撤触发与被拒绝的止损推送出去；其他 tick 静默。
type TickObserver struct {
	n       TextNotifier
	timeout time.Duration
	// 只在回撤状态由未触发变为触发时提醒一次
	breached bool
}

func NewTickObserver(n TextNotifier) *TickObserver {
	return &TickObserver{n: n, timeout: 30 * time.Second}
}

func (o *TickObserver) OnTick(ctx context.Context, rep engine.TickReport) {
	msg, ok := o.build(rep)
	if !ok {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.n.SendText(sendCtx, msg.Markdown()); err != nil {
		logger.Warnf("notify: send failed: %v", err)
	}
}

func (o *TickObserver) build(rep engine.TickReport) (Message, bool) {
	if rep.Skipped {
		return Message{}, false
	}
	newBreach := rep.Breached && !o.breached
	o.breached = rep.Breached
	v := rep.Ledger
	switch {
	case rep.Fill != nil:
		f := rep.Fill
		icon := "🟢"
		if f.Side == types.SideSell {
			icon = "🔴"
		}
		if rep.Intent == types.IntentLiquidateStop {
			icon = "🛑"
		}
		mode := "live"
		if f.Simulated {
			mode = "sim"
		}
		return Message{
			Icon:  icon,
			Title: rep.Intent.String() + " SOL",
			Fields: []Field{
				F("amount", "%.9f SOL", f.Amount),
				F("fill", "%.4f (mark %.4f, slip %.3f%%)", f.FillPrice, f.MarkPrice, f.SlippagePct),
				F("fee", "%.6f", f.Fee),
				F("realized", "%.6f", f.RealizedPnL),
				F("cash", "%.6f", v.CashBalance),
				F("position", "%.9f SOL", v.PositionAmount),
				F("total", "%.6f (dd %.2f%%)", v.TotalValue, v.DrawdownPct),
				F("mode", "%s", mode),
			},
			Footer:    "session " + rep.SessionID,
			Timestamp: f.Timestamp,
		}, true
	case rep.Intent == types.IntentLiquidateStop && rep.Rejection != nil:
		return Message{
			Icon:  "⚠️",
			Title: "Stop-loss not executed",
			Fields: []Field{
				F("reason", "%s", rep.Rejection.Reason),
				F("price", "%.4f", rep.Price),
				F("drawdown", "%.2f%%", v.DrawdownPct),
			},
			Footer:    "session " + rep.SessionID,
			Timestamp: rep.Time,
		}, true
	case newBreach:
		return Message{
			Icon:  "📉",
			Title: "Drawdown limit breached",
			Fields: []Field{
				F("drawdown", "%.2f%%", v.DrawdownPct),
				F("peak", "%.6f", v.PeakTotalValue),
				F("total", "%.6f", v.TotalValue),
				F("position", "%.9f SOL", v.PositionAmount),
			},
			Footer:    "session " + rep.SessionID,
			Timestamp: rep.Time,
		}, true
	}
	return Message{}, false
}
