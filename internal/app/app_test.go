package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"solbot/internal/analysis/performance"
	"solbot/internal/config"
	"solbot/internal/gateway/feed"
	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`capital:
  trading_capital_sol: 5
  max_position_size_pct: 80
execution:
  starting_cash: 1000
  seed: 7
feed:
  sources: [mock]
  mock_seed: 3
store:
  path: %s
backtest:
  result_dir: %s
  chart: false
http:
  enabled: false
%s`, filepath.Join(dir, "data", "solbot.db"), filepath.Join(dir, "bt"), extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestEngineConfigMapping(t *testing.T) {
	cfg := loadConfig(t, "")
	ec := EngineConfig(cfg)
	assert.Equal(t, 5.0, ec.Capital.TradingCapital)
	assert.Equal(t, 80.0, ec.Capital.MaxPositionPct)
	assert.Equal(t, 1000.0, ec.StartingCash)
	assert.True(t, ec.SimulationMode)
	assert.Equal(t, cfg.Strategy.RSIOverbought, ec.Thresholds.RSIOverbought)

	s := IndicatorSettings(cfg.Strategy)
	assert.Equal(t, cfg.Strategy.BBPeriod, s.BBPeriod)
	assert.Equal(t, cfg.Strategy.MinHistory, s.MinHistory)
}

func TestStartupSummaryString(t *testing.T) {
	cfg := loadConfig(t, "")
	a, err := NewApp(context.Background(), cfg, WithSources(feed.NewMock(100, 0.01, 1)))
	require.NoError(t, err)
	defer a.Close()

	out := a.Summary.String()
	assert.Contains(t, out, "SIMULATION")
	assert.Contains(t, out, "5.0000 SOL")
	assert.Contains(t, out, "4.0000 SOL (80.0%)")
	assert.Contains(t, out, cfg.Store.Path)
	assert.Contains(t, out, "http:              -")
}

func TestAppRunTicksUntilCancelled(t *testing.T) {
	cfg := loadConfig(t, "")
	a, err := NewApp(context.Background(), cfg, WithSources(feed.NewMock(100, 0.01, 1)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	snap := a.Session().Snapshot()
	assert.GreaterOrEqual(t, snap.Ticks, 1)
	assert.True(t, snap.Simulation)

	var buf bytes.Buffer
	rep, err := GenerateReport(context.Background(), cfg, 1, "", &buf)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rep.RawCounts.Prices, 1)
	assert.Contains(t, buf.String(), "price_count")
}

func TestGenerateReportToFile(t *testing.T) {
	cfg := loadConfig(t, "")
	out := filepath.Join(t.TempDir(), "reports", "latest.yaml")
	rep, err := GenerateReport(context.Background(), cfg, 0, out, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.RawCounts.Prices)
	assert.NotEmpty(t, rep.Notes)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "period_hours: 24")
}

func TestRunBacktestFromCSV(t *testing.T) {
	cfg := loadConfig(t, "")
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sol.csv")

	var b strings.Builder
	b.WriteString("timestamp,price\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]float64, 0, 62)
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			prices = append(prices, 100)
		} else {
			prices = append(prices, 100.5)
		}
	}
	prices = append(prices, 90, 150)
	for i, p := range prices {
		fmt.Fprintf(&b, "%s,%v\n", start.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), p)
	}
	require.NoError(t, os.WriteFile(csvPath, []byte(b.String()), 0o644))

	outDir := filepath.Join(dir, "out")
	res, err := RunBacktest(context.Background(), cfg, BacktestRequest{
		CSVPath: csvPath,
		OutDir:  outDir,
		Format:  performance.FormatYAML,
	})
	require.NoError(t, err)
	assert.Equal(t, "sol", res.Result.Name)
	assert.Equal(t, filepath.Join(outDir, "runs.db"), res.Database)
	assert.FileExists(t, res.Artifacts.Summary)
	assert.FileExists(t, res.Artifacts.Fills)
	assert.Empty(t, res.Artifacts.Chart)
	assert.Equal(t, len(prices), res.Result.Points)
}

func TestRunBacktestRequiresCSV(t *testing.T) {
	cfg := loadConfig(t, "")
	_, err := RunBacktest(context.Background(), cfg, BacktestRequest{})
	require.Error(t, err)
}

type underfunded float64

func (u underfunded) Balance(context.Context, string) (float64, error) { return float64(u), nil }

func TestLiveModeRefusesUnderfundedWallet(t *testing.T) {
	cfg := loadConfig(t, `wallet:
  address: So11111111111111111111111111111111111111112
`)
	cfg.Execution.SimulationMode = false
	cfg.Wallet.CheckFunding = true

	_, err := NewApp(context.Background(), cfg,
		WithSources(feed.NewMock(100, 0.01, 1)),
		WithBalanceReader(underfunded(0.5)),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfigInvalid)
}
