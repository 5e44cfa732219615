package livehttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"solbot/internal/engine"
	"solbot/internal/store"
)

// StatusSource 由 engine.Session 实现。
type StatusSource interface {
	Snapshot() engine.Snapshot
}

// Router 暴露会话查询接口。
type Router struct {
	session StatusSource
	store   store.Store
	now     func() time.Time
}

func NewRouter(session StatusSource, st store.Store, now func() time.Time) *Router {
	if now == nil {
		now = time.Now
	}
	return &Router{session: session, store: st, now: now}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/fills", r.handleFills)
	group.GET("/capital", r.handleCapital)
	group.GET("/history/fills", r.handleStoredFills)
	group.GET("/stats", r.handleStats)
	group.GET("/reports/latest", r.handleReport)
}

func (r *Router) handleStatus(c *gin.Context) {
	snap := r.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"session_id": snap.SessionID,
		"simulation": snap.Simulation,
		"ticks":      snap.Ticks,
		"updated_at": snap.UpdatedAt,
		"ledger":     snap.Ledger,
		"last":       snap.Last,
	})
}

// handleFills 返回本会话内存中的成交，最新在前。
func (r *Router) handleFills(c *gin.Context) {
	fills := r.session.Snapshot().Fills
	limit := queryInt(c, "limit", 50, 500)
	out := make([]any, 0, limit)
	for i := len(fills) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, fills[i])
	}
	c.JSON(http.StatusOK, gin.H{"fills": out, "total": len(fills)})
}

func (r *Router) handleCapital(c *gin.Context) {
	snap := r.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{"status": snap.Capital, "summary": snap.Summary})
}

func (r *Router) storeAvailable(c *gin.Context) bool {
	if r.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "持久化未启用"})
		return false
	}
	return true
}

func (r *Router) handleStoredFills(c *gin.Context) {
	if !r.storeAvailable(c) {
		return
	}
	limit := queryInt(c, "limit", 50, 500)
	fills, err := r.store.Fills().ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills})
}

func (r *Router) handleStats(c *gin.Context) {
	if !r.storeAvailable(c) {
		return
	}
	stats, err := r.store.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (r *Router) handleReport(c *gin.Context) {
	if !r.storeAvailable(c) {
		return
	}
	hours := queryInt(c, "hours", 24, 24*365)
	rep, err := store.BuildReport(c.Request.Context(), r.store, hours, r.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
