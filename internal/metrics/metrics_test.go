package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"solbot/internal/capital"
	"solbot/internal/engine"
	"solbot/internal/ledger"
	"solbot/internal/pkg/circuit"
	"solbot/internal/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	cases := map[string]engine.TickReport{
		"skipped":  {Skipped: true},
		"traded":   {Fill: &ledger.Fill{}},
		"rejected": {Rejection: &capital.Rejection{}},
		"error":    {Err: errors.New("x")},
		"hold":     {},
	}
	for want, rep := range cases {
		assert.Equal(t, want, Outcome(rep))
	}
}

func TestRecordUpdatesCollectors(t *testing.T) {
	before := testutil.ToFloat64(fillsTotal.WithLabelValues("buy", "BUY"))
	Record(engine.TickReport{
		Price:  150,
		Intent: types.IntentBuy,
		Fill:   &ledger.Fill{Side: types.SideBuy, Amount: 0.08},
		Ledger: ledger.View{CashBalance: 8, PositionAmount: 0.08, TotalValue: 20, DrawdownPct: 1.5},
	})
	assert.Equal(t, before+1, testutil.ToFloat64(fillsTotal.WithLabelValues("buy", "BUY")))
	assert.Equal(t, 150.0, testutil.ToFloat64(priceGauge))
	assert.Equal(t, 0.08, testutil.ToFloat64(positionGauge))
	assert.Equal(t, 1.5, testutil.ToFloat64(drawdownGauge))
}

func TestBreakerChanged(t *testing.T) {
	BreakerChanged("jupiter", circuit.StateClosed, circuit.StateOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("jupiter")))
	BreakerChanged("jupiter", circuit.StateOpen, circuit.StateHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(breakerState.WithLabelValues("jupiter")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ExecutorCall("sell", "declined")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "solbot_executor_calls_total")
}
