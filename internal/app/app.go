// Package app 负责应用级编排：加载配置，初始化依赖，启动交易会话与 HTTP 服务。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"solbot/internal/backtest"
	"solbot/internal/config"
	"solbot/internal/engine"
	"solbot/internal/gateway/binance"
	"solbot/internal/logger"
	"solbot/internal/store"
	livehttp "solbot/internal/transport/http/live"
)

const retentionInterval = time.Hour

type App struct {
	cfg     *config.Config
	clock   func() time.Time
	session *engine.Session
	source  engine.PriceSource
	stream  *binance.StreamSource
	store   store.Store
	results *backtest.ResultStore
	http    *livehttp.Server
	closers []io.Closer

	ownsStore bool
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	return NewAppBuilder(cfg, opts...).Build(ctx)
}

func (a *App) Session() *engine.Session { return a.session }

// Run 启动会话与附属任务，直到 ctx 取消或任一任务出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.session == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}

	a.session.Start()
	defer a.session.Stop()

	group, ctx := errgroup.WithContext(ctx)
	if a.stream != nil {
		group.Go(func() error { return a.stream.Run(ctx) })
	}
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if a.store != nil && a.cfg.Store.RetentionDays > 0 {
		group.Go(func() error { return a.retentionLoop(ctx) })
	}
	group.Go(func() error {
		return a.session.Run(ctx, a.source, a.cfg.App.TickInterval())
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) retentionLoop(ctx context.Context) error {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		a.cleanup(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) cleanup(ctx context.Context) {
	cutoff := a.clock().Add(-time.Duration(a.cfg.Store.RetentionDays) * 24 * time.Hour)
	n, err := a.store.Cleanup(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf("store: cleanup failed: %v", err)
		}
		return
	}
	if n > 0 {
		logger.Infof("store: removed %d rows older than %s", n, cutoff.Format(time.RFC3339))
	}
}

// Close releases files and databases opened by the builder.
func (a *App) Close() {
	if a.results != nil {
		_ = a.results.Close()
		a.results = nil
	}
	if a.store != nil && a.ownsStore {
		_ = a.store.Close()
		a.store = nil
	}
	if len(a.closers) > 0 {
		logger.SetOutput(os.Stdout)
		_ = logger.SetTradeWriter(nil, false)
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

func (a *App) configureLogging() error {
	app := a.cfg.App
	logger.SetLevel(app.LogLevel)
	logger.SetFormat(app.LogFormat)
	if app.LogPath != "" {
		f, err := openAppend(app.LogPath)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		logger.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	if app.TradeLogPath != "" {
		f, err := openAppend(app.TradeLogPath)
		if err != nil {
			return fmt.Errorf("open trade log: %w", err)
		}
		a.closers = append(a.closers, f)
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if err := logger.SetTradeWriter(f, info.Size() == 0); err != nil {
			return err
		}
	}
	return nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
