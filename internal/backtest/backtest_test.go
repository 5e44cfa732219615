package backtest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solbot/internal/analysis/indicator"
	"solbot/internal/analysis/performance"
	"solbot/internal/engine"
	"solbot/internal/gateway/feed"
	"solbot/internal/strategy"
	"solbot/internal/types"
)

var base = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

// crashAndRecover 在窄幅震荡后先急跌再急涨，触发一次买入与一次卖出。
func crashAndRecover() []feed.PricePoint {
	var prices []float64
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			prices = append(prices, 100)
		} else {
			prices = append(prices, 100.5)
		}
	}
	prices = append(prices, 90, 150)
	out := make([]feed.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = feed.PricePoint{Time: base.Add(time.Duration(i) * time.Minute), Price: p}
	}
	return out
}

func testConfig() Config {
	return Config{
		Name:   "crash",
		Source: "test.csv",
		Engine: engine.Config{
			Capital:        types.CapitalConfig{TradingCapital: 5, MaxPositionPct: 80, ReserveBalance: 0.05, MaxDrawdownPct: 20},
			StartingCash:   1000,
			FeeRate:        0.0025,
			SlippageMinPct: 0.1,
			SlippageMaxPct: 0.5,
			Thresholds:     strategy.DefaultThresholds(),
		},
		Indicators: indicator.DefaultSettings(),
		Warmup:     50,
		Seed:       7,
	}
}

func runBacktest(t *testing.T) *Result {
	t.Helper()
	r, err := NewRunner(testConfig())
	require.NoError(t, err)
	res, err := r.Run(context.Background(), crashAndRecover())
	require.NoError(t, err)
	return res
}

func TestRunnerTradesCrashAndRecovery(t *testing.T) {
	res := runBacktest(t)

	assert.Equal(t, RunStatusDone, res.Status)
	assert.Equal(t, 62, res.Points)
	assert.Len(t, res.Equity, 12)
	assert.Len(t, res.Prices, 12)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, types.SideBuy, res.Fills[0].Side)
	assert.Equal(t, types.SideSell, res.Fills[1].Side)
	assert.Equal(t, base.Add(60*time.Minute), res.Fills[0].Timestamp)
	assert.True(t, res.Fills[0].Simulated)

	st := res.Stats
	assert.Equal(t, 2, st.Trades)
	assert.Equal(t, 1, st.Buys)
	assert.Equal(t, 1, st.Sells)
	assert.Equal(t, 1, st.Wins)
	assert.InDelta(t, 100.0, st.WinRatePct, 1e-9)
	assert.Greater(t, st.ReturnPct, 0.0)
	assert.InDelta(t, st.FinalValue-st.StartingCash, st.Profit, 1e-9)
	assert.Equal(t, 1000.0, st.StartingCash)
	assert.Nil(t, res.Final.Position)
	assert.Equal(t, base.Add(50*time.Minute), res.PeriodStart)

	require.NotNil(t, res.Analytics.Price)
	require.NotNil(t, res.Analytics.Portfolio)
	assert.Equal(t, 2, res.Analytics.Trading.Simulation)
}

func TestRunnerIsDeterministicForSeed(t *testing.T) {
	a := runBacktest(t)
	b := runBacktest(t)
	assert.Equal(t, a.Stats.FinalValue, b.Stats.FinalValue)
	assert.Equal(t, a.Fills[0].SlippagePct, b.Fills[0].SlippagePct)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunnerNeedsPointsBeyondWarmup(t *testing.T) {
	r, err := NewRunner(testConfig())
	require.NoError(t, err)
	_, err = r.Run(context.Background(), crashAndRecover()[:50])
	assert.ErrorIs(t, err, ErrNotEnoughPoints)

	_, err = NewRunner(Config{Warmup: -1})
	assert.ErrorIs(t, err, types.ErrConfigInvalid)
}

func TestRunnerHonoursCancellation(t *testing.T) {
	r, err := NewRunner(testConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, crashAndRecover())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerSkipsInvalidPrices(t *testing.T) {
	points := crashAndRecover()
	points = append(points[:55], append([]feed.PricePoint{{Time: points[55].Time, Price: 0}}, points[55:]...)...)
	r, err := NewRunner(testConfig())
	require.NoError(t, err)
	res, err := r.Run(context.Background(), points)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Skipped)
	assert.Len(t, res.Equity, len(points)-50-1)
}

func TestResultStoreRoundTrip(t *testing.T) {
	res := runBacktest(t)
	store, err := NewResultStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, res))

	run, err := store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Name, run.Name)
	assert.Equal(t, 2, run.Trades)
	assert.Equal(t, res.Config.Seed, run.Config.Seed)
	assert.Equal(t, res.Stats.Wins, run.Stats.Wins)
	assert.Equal(t, res.PeriodStart.UnixMilli(), run.StartTS)

	fills, err := store.ListFills(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, res.Fills[1].ID, fills[1].ID)
	assert.Equal(t, types.SideSell, fills[1].Side)

	equity, err := store.ListEquity(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, equity, len(res.Equity))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, store.DeleteRun(ctx, res.RunID))
	_, err = store.GetRun(ctx, res.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	equity, err = store.ListEquity(ctx, res.RunID)
	require.NoError(t, err)
	assert.Empty(t, equity)
	assert.ErrorIs(t, store.DeleteRun(ctx, res.RunID), ErrRunNotFound)
}

func TestExportWritesArtifacts(t *testing.T) {
	res := runBacktest(t)
	dir := t.TempDir()
	art, err := Export(dir, res, ExportOptions{Format: performance.FormatYAML, Chart: true, Indicators: indicator.DefaultSettings()})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, res.RunID, "summary.yaml"), art.Summary)
	for _, p := range []string{art.Summary, art.Fills, art.Equity, art.Chart} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	summary, err := os.ReadFile(art.Summary)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "win_rate_pct: 100")

	fills, err := os.ReadFile(art.Fills)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(fills)), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "seq,timestamp,side"))
}

func TestWriteEquityCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEquityCSV(&buf, []performance.EquityPoint{{Time: base, TotalValue: 1000.5}}))
	assert.Equal(t, "timestamp,total_value,realized_pnl,unrealized_pnl\n2026-02-01T00:00:00Z,1000.5,0,0\n", buf.String())
}
