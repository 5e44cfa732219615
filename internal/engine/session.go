package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"solbot/internal/capital"
	"solbot/internal/ledger"
	"solbot/internal/logger"
	"solbot/internal/types"
)

var ErrSessionStopped = errors.New("session is stopped")

// Snapshot 是会话最新状态的只读副本，供 HTTP 等并发读者使用。
type Snapshot struct {
	SessionID  string          `json:"session_id"`
	Simulation bool            `json:"simulation"`
	Last       *TickReport     `json:"last,omitempty"`
	Ledger     ledger.View     `json:"ledger"`
	Capital    capital.Status  `json:"capital"`
	Summary    capital.Summary `json:"summary"`
	Fills      []ledger.Fill   `json:"fills"`
	Ticks      int             `json:"ticks"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type tickRequest struct {
	ctx   context.Context
	price float64
	reply chan tickReply
}

type tickReply struct {
	report TickReport
	err    error
}

// Session is the single owner of one Engine. Every tick runs on the session
// goroutine, so ledger commits never interleave; readers use Snapshot.
type Session struct {
	engine    *Engine
	observers []Observer

	msgCh  chan tickRequest
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	snapshot atomic.Value
	// ticks 只在 actor goroutine 内读写，其他 goroutine 通过 Snapshot 读取。
	ticks int
}

func NewSession(e *Engine, observers ...Observer) *Session {
	s := &Session{
		engine:    e,
		observers: observers,
		msgCh:     make(chan tickRequest, 16),
		stopCh:    make(chan struct{}),
	}
	s.refreshSnapshot(nil)
	return s
}

func (s *Session) ID() string { return s.engine.SessionID() }

func (s *Session) Start() {
	s.wg.Add(1)
	go s.runLoop()
}

// Stop waits for the in-flight tick to finish; queued ticks are dropped.
func (s *Session) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Step submits one price and waits for its report.
func (s *Session) Step(ctx context.Context, price float64) (TickReport, error) {
	req := tickRequest{ctx: ctx, price: price, reply: make(chan tickReply, 1)}
	select {
	case s.msgCh <- req:
	case <-s.stopCh:
		return TickReport{}, ErrSessionStopped
	case <-ctx.Done():
		return TickReport{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.report, r.err
	case <-ctx.Done():
		return TickReport{}, ctx.Err()
	case <-s.stopCh:
		return TickReport{}, fmt.Errorf("%w during tick", ErrSessionStopped)
	}
}

func (s *Session) Snapshot() Snapshot {
	val := s.snapshot.Load()
	if val == nil {
		return Snapshot{SessionID: s.ID()}
	}
	return *val.(*Snapshot)
}

// Run polls src every interval and steps the engine until ctx is cancelled.
// An unavailable feed skips the tick.
func (s *Session) Run(ctx context.Context, src PriceSource, interval time.Duration) error {
	if src == nil {
		return fmt.Errorf("price source is required")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger.Infof("session[%s]: running on %s every %s (simulation=%v)", s.ID(), src.Name(), interval, s.engine.Simulation())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.pollOnce(ctx, src)
		select {
		case <-ctx.Done():
			logger.Infof("session[%s]: stopping after %d ticks", s.ID(), s.Snapshot().Ticks)
			return nil
		case <-s.stopCh:
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Session) pollOnce(ctx context.Context, src PriceSource) {
	price, err := src.Price(ctx)
	if err != nil {
		if errors.Is(err, types.ErrFeedUnavailable) || errors.Is(err, context.Canceled) {
			logger.Warnf("session[%s]: skip tick: %v", s.ID(), err)
		} else {
			logger.Errorf("session[%s]: price source %s: %v", s.ID(), src.Name(), err)
		}
		return
	}
	if _, err := s.Step(ctx, price); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnf("session[%s]: tick failed: %v", s.ID(), err)
	}
}

func (s *Session) runLoop() {
	defer s.wg.Done()
	logger.Debugf("session[%s]: actor started", s.ID())
	for {
		select {
		case req := <-s.msgCh:
			s.handle(req)
		case <-s.stopCh:
			logger.Debugf("session[%s]: actor stopped", s.ID())
			return
		}
	}
}

func (s *Session) handle(req tickRequest) {
	var reply tickReply
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("session[%s]: panic during tick: %v\n%s", s.ID(), r, debug.Stack())
			reply.err = fmt.Errorf("panic: %v", r)
		}
		req.reply <- reply
		close(req.reply)
		if dur := time.Since(start); dur > 500*time.Millisecond {
			logger.Warnf("session[%s]: slow tick took %v", s.ID(), dur)
		}
	}()

	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	rep := s.engine.Step(ctx, req.price)
	s.ticks++
	s.refreshSnapshot(&rep)
	for _, obs := range s.observers {
		obs.OnTick(ctx, rep)
	}
	reply.report = rep
}

func (s *Session) refreshSnapshot(last *TickReport) {
	snap := &Snapshot{
		SessionID:  s.engine.SessionID(),
		Simulation: s.engine.Simulation(),
		Last:       last,
		Ledger:     s.engine.View(),
		Capital:    s.engine.CapitalStatus(),
		Summary:    s.engine.CapitalSummary(),
		Fills:      s.engine.Fills(),
		Ticks:      s.ticks,
		UpdatedAt:  time.Now(),
	}
	s.snapshot.Store(snap)
}
