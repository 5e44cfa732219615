// Package metrics 暴露 Prometheus 指标，由 HTTP 层的 /metrics 输出。
package metrics

import (
	"context"
	"net/http"

	"solbot/internal/engine"
	"solbot/internal/pkg/circuit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticksTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "solbot_ticks_total", Help: "Ticks processed, by outcome"}, []string{"outcome"})
	fillsTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "solbot_fills_total", Help: "Committed fills, by side and intent"}, []string{"side", "intent"})
	breachesTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "solbot_drawdown_breaches_total", Help: "Ticks on which the drawdown limit was breached"})
	executorCalls  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "solbot_executor_calls_total", Help: "On-chain executor calls, by side and outcome"}, []string{"side", "outcome"})
	breakerState   = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "solbot_breaker_state", Help: "0=closed, 1=open, 2=half_open"}, []string{"name"})
	priceGauge     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_price", Help: "Last mark price"})
	cashGauge      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_cash_balance", Help: "Ledger cash balance (quote units)"})
	positionGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_position_sol", Help: "Open position amount in SOL"})
	totalGauge     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_total_value", Help: "Cash plus position at mark"})
	peakGauge      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_peak_total_value", Help: "Monotonic peak of total value"})
	drawdownGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_drawdown_pct", Help: "Drawdown from peak in percent"})
	realizedGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_realized_pnl", Help: "Cumulative realized P&L"})
	unrealGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_unrealized_pnl", Help: "Unrealized P&L at mark"})
	feesGauge      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_fees_paid", Help: "Cumulative fees paid"})
	utilizationGge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "solbot_capital_utilization_pct", Help: "Position as percent of trading capital"})
)

func init() {
	prometheus.MustRegister(
		ticksTotal, fillsTotal, breachesTotal, executorCalls, breakerState,
		priceGauge, cashGauge, positionGauge, totalGauge, peakGauge,
		drawdownGauge, realizedGauge, unrealGauge, feesGauge, utilizationGge,
	)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Outcome classifies a tick for the ticks counter.
func Outcome(rep engine.TickReport) string {
	switch {
	case rep.Skipped:
		return "skipped"
	case rep.Fill != nil:
		return "traded"
	case rep.Rejection != nil:
		return "rejected"
	case rep.Err != nil || rep.Error != "":
		return "error"
	default:
		return "hold"
	}
}

// Record updates every collector from one tick report.
func Record(rep engine.TickReport) {
	ticksTotal.WithLabelValues(Outcome(rep)).Inc()
	if rep.Skipped {
		return
	}
	if rep.Breached {
		breachesTotal.Inc()
	}
	if rep.Fill != nil {
		fillsTotal.WithLabelValues(string(rep.Fill.Side), rep.Intent.String()).Inc()
	}
	v := rep.Ledger
	priceGauge.Set(rep.Price)
	cashGauge.Set(v.CashBalance)
	positionGauge.Set(v.PositionAmount)
	totalGauge.Set(v.TotalValue)
	peakGauge.Set(v.PeakTotalValue)
	drawdownGauge.Set(v.DrawdownPct)
	realizedGauge.Set(v.RealizedPnL)
	unrealGauge.Set(v.UnrealizedPnL)
	feesGauge.Set(v.FeesPaid)
	utilizationGge.Set(v.CapitalUtilizationPct)
}

// Observer adapts Record to engine.Observer.
type Observer struct{}

func (Observer) OnTick(_ context.Context, rep engine.TickReport) { Record(rep) }

// ExecutorCall counts one on-chain executor attempt; outcome is ok, declined, error or breaker_open.
func ExecutorCall(side, outcome string) {
	executorCalls.WithLabelValues(side, outcome).Inc()
}

// BreakerChanged is suitable for circuit.WithStateChange.
func BreakerChanged(name string, _, to circuit.State) {
	v := 0.0
	switch to {
	case circuit.StateOpen:
		v = 1
	case circuit.StateHalfOpen:
		v = 2
	}
	breakerState.WithLabelValues(name).Set(v)
}
