// Package backtesthttp 暴露已持久化回测结果的只读查询接口。
package backtesthttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solbot/internal/analysis/performance"
	"solbot/internal/backtest"
	"solbot/internal/ledger"
)

// ResultReader 由 backtest.ResultStore 实现。
type ResultReader interface {
	ListRuns(ctx context.Context, limit int) ([]backtest.Run, error)
	GetRun(ctx context.Context, id string) (backtest.Run, error)
	ListFills(ctx context.Context, runID string) ([]ledger.Fill, error)
	ListEquity(ctx context.Context, runID string) ([]performance.EquityPoint, error)
}

type Router struct {
	results ResultReader
}

func NewRouter(results ResultReader) *Router {
	return &Router{results: results}
}

// Register 将 /api/backtest 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/runs", r.handleRunList)
	group.GET("/runs/:id", r.handleRunDetail)
	group.GET("/runs/:id/fills", r.handleRunFills)
	group.GET("/runs/:id/equity", r.handleRunEquity)
}

func (r *Router) available(c *gin.Context) bool {
	if r.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return false
	}
	return true
}

func (r *Router) handleRunList(c *gin.Context) {
	if !r.available(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := r.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (r *Router) handleRunDetail(c *gin.Context) {
	if !r.available(c) {
		return
	}
	run, err := r.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (r *Router) handleRunFills(c *gin.Context) {
	if !r.available(c) {
		return
	}
	fills, err := r.results.ListFills(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills})
}

func (r *Router) handleRunEquity(c *gin.Context) {
	if !r.available(c) {
		return
	}
	points, err := r.results.ListEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type point struct {
		TS            int64   `json:"ts"`
		TotalValue    float64 `json:"total_value"`
		RealizedPnL   float64 `json:"realized_pnl"`
		UnrealizedPnL float64 `json:"unrealized_pnl"`
	}
	out := make([]point, len(points))
	for i, p := range points {
		out[i] = point{TS: p.Time.UnixMilli(), TotalValue: p.TotalValue, RealizedPnL: p.RealizedPnL, UnrealizedPnL: p.UnrealizedPnL}
	}
	c.JSON(http.StatusOK, gin.H{"equity": out})
}

func statusOf(err error) int {
	if errors.Is(err, backtest.ErrRunNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
