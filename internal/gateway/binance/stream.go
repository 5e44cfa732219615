package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"solbot/internal/gateway/feed"
	"solbot/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// StreamStats 记录逐笔成交流的连接状态。
type StreamStats struct {
	Messages        int64     `json:"messages"`
	Reconnects      int64     `json:"reconnects"`
	SubscribeErrors int64     `json:"subscribe_errors"`
	LastError       string    `json:"last_error,omitempty"`
	LastTradeAt     time.Time `json:"last_trade_at"`
}

// StreamSource 订阅 <symbol>@trade，缓存最新成交价，Price 只读缓存。
type StreamSource struct {
	cfg    Config
	dialer *websocket.Dialer
	now    func() time.Time

	mu     sync.RWMutex
	last   float64
	lastAt time.Time
	stats  StreamStats
}

func NewStream(cfg Config) *StreamSource {
	return &StreamSource{
		cfg:    cfg.withDefaults(),
		dialer: websocket.DefaultDialer,
		now:    time.Now,
	}
}

func (s *StreamSource) Name() string { return "binance_stream" }

func (s *StreamSource) Price(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last <= 0 {
		return 0, feed.Unavailable(s.Name(), fmt.Errorf("no trade received yet"))
	}
	if age := s.now().Sub(s.lastAt); age > s.cfg.MaxAge {
		return 0, feed.Unavailable(s.Name(), fmt.Errorf("last trade %s old", age.Round(time.Second)))
	}
	return s.last, nil
}

func (s *StreamSource) Stats() StreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *StreamSource) streamURL() string {
	return s.cfg.StreamURL + "/" + strings.ToLower(s.cfg.Symbol) + "@trade"
}

// Run 保持连接直到 ctx 取消，断线后按 1s 起步、最多 30s 的退避重连。
func (s *StreamSource) Run(ctx context.Context) error {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, _, err := s.dialer.DialContext(ctx, s.streamURL(), nil)
		if err != nil {
			s.recordSubscribeError(err)
			logger.Warnf("[binance] trade stream dial failed: %v", err)
			if !sleepWithContext(ctx, delay) {
				return nil
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		logger.Infof("[binance] trade stream connected %s", s.cfg.Symbol)
		err = s.readLoop(ctx, conn)
		s.recordReconnect(err)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warnf("[binance] trade stream disconnected: %v", err)
		if !sleepWithContext(ctx, delay) {
			return nil
		}
		delay = nextDelay(delay)
	}
}

func (s *StreamSource) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(msg)
	}
}

func (s *StreamSource) handleMessage(msg []byte) {
	parsed := gjson.ParseBytes(msg)
	if parsed.Get("e").String() != "trade" {
		return
	}
	price := parsed.Get("p").Float()
	if price <= 0 {
		return
	}
	s.mu.Lock()
	s.last = price
	s.lastAt = s.now()
	s.stats.Messages++
	s.stats.LastTradeAt = s.lastAt
	s.mu.Unlock()
}

func (s *StreamSource) recordSubscribeError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.stats.SubscribeErrors++
	s.stats.LastError = err.Error()
	s.mu.Unlock()
}

func (s *StreamSource) recordReconnect(err error) {
	s.mu.Lock()
	s.stats.Reconnects++
	if err != nil && err.Error() != "" {
		s.stats.LastError = err.Error()
	}
	s.mu.Unlock()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}
