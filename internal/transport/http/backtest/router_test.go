package backtesthttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solbot/internal/analysis/performance"
	"solbot/internal/backtest"
	"solbot/internal/ledger"
	"solbot/internal/types"
)

type fakeResults struct {
	runs []backtest.Run
}

func (f *fakeResults) ListRuns(ctx context.Context, limit int) ([]backtest.Run, error) {
	return f.runs, nil
}

func (f *fakeResults) GetRun(ctx context.Context, id string) (backtest.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return backtest.Run{}, fmt.Errorf("%w: %s", backtest.ErrRunNotFound, id)
}

func (f *fakeResults) ListFills(ctx context.Context, runID string) ([]ledger.Fill, error) {
	return []ledger.Fill{{ID: "f1", Side: types.SideBuy, Amount: 1}}, nil
}

func (f *fakeResults) ListEquity(ctx context.Context, runID string) ([]performance.EquityPoint, error) {
	return []performance.EquityPoint{{Time: time.UnixMilli(1000), TotalValue: 12}}, nil
}

func newEngine(results ResultReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewRouter(results).Register(r.Group("/api/backtest"))
	return r
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRunRoutes(t *testing.T) {
	h := newEngine(&fakeResults{runs: []backtest.Run{{ID: "r1", Name: "first", Trades: 2}}})

	w, body := get(t, h, "/api/backtest/runs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["runs"], 1)

	w, body = get(t, h, "/api/backtest/runs/r1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "first", body["run"].(map[string]any)["name"])

	w, _ = get(t, h, "/api/backtest/runs/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = get(t, h, "/api/backtest/runs/r1/fills")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["fills"], 1)

	w, body = get(t, h, "/api/backtest/runs/r1/equity")
	assert.Equal(t, http.StatusOK, w.Code)
	point := body["equity"].([]any)[0].(map[string]any)
	assert.Equal(t, 1000.0, point["ts"])
}

func TestRoutesWithoutStore(t *testing.T) {
	w, _ := get(t, newEngine(nil), "/api/backtest/runs")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
