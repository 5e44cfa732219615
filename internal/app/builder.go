package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"solbot/internal/analysis/indicator"
	"solbot/internal/backtest"
	"solbot/internal/config"
	"solbot/internal/engine"
	"solbot/internal/execution"
	"solbot/internal/gateway/binance"
	"solbot/internal/gateway/feed"
	"solbot/internal/gateway/jupiter"
	"solbot/internal/gateway/notifier"
	"solbot/internal/gateway/pyth"
	"solbot/internal/gateway/solana"
	"solbot/internal/logger"
	"solbot/internal/metrics"
	"solbot/internal/store"
	"solbot/internal/store/sqlite"
	livehttp "solbot/internal/transport/http/live"
)

const (
	feedBreakerThreshold = 3
	feedBreakerCooldown  = 30 * time.Second
)

// AppBuilder 负责把配置装配成可运行的 App；各外部依赖可通过 Option 替换，便于测试。
type AppBuilder struct {
	cfg *config.Config

	sources  []feed.Source
	store    store.Store
	balance  solana.BalanceReader
	signer   jupiter.Signer
	notifier notifier.TextNotifier
	clock    func() time.Time
}

type AppBuilderOption func(*AppBuilder)

// WithSources replaces the configured price feeds.
func WithSources(srcs ...feed.Source) AppBuilderOption {
	return func(b *AppBuilder) { b.sources = srcs }
}

func WithStore(s store.Store) AppBuilderOption {
	return func(b *AppBuilder) { b.store = s }
}

func WithBalanceReader(r solana.BalanceReader) AppBuilderOption {
	return func(b *AppBuilder) { b.balance = r }
}

// WithSigner 注入链上签名器；未注入时实盘执行一律返回 false。
func WithSigner(s jupiter.Signer) AppBuilderOption {
	return func(b *AppBuilder) { b.signer = s }
}

func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) { b.notifier = n }
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) { b.clock = now }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{cfg: cfg, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	a := &App{cfg: cfg, clock: b.clock}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.configureLogging(); err != nil {
		return nil, err
	}

	// 实盘启动前先确认钱包资金
	var executor engine.OnChainExecutor
	if !cfg.Execution.SimulationMode {
		if cfg.Wallet.CheckFunding {
			if _, err := b.fundingGuard().Check(ctx); err != nil {
				return nil, err
			}
		}
		executor = b.buildExecutor()
	}

	src, stream, err := b.buildPriceSource()
	if err != nil {
		return nil, err
	}
	a.source, a.stream = src, stream

	engCfg := EngineConfig(cfg)
	eng, err := engine.New(engCfg, engine.Deps{
		Indicators: indicator.NewCalculator(IndicatorSettings(cfg.Strategy)),
		Slippage:   execution.NewRandomSlippage(cfg.Execution.SlippageMinPct, cfg.Execution.SlippageMaxPct, cfg.Execution.Seed),
		Executor:   executor,
		Clock:      b.clock,
	})
	if err != nil {
		return nil, err
	}

	observers := []engine.Observer{metrics.Observer{}, TradeJournal{}}
	if b.store != nil {
		a.store = b.store
	} else if cfg.Store.Enabled {
		if a.store, err = openStore(cfg.Store.Path); err != nil {
			return nil, err
		}
		a.ownsStore = true
	}
	if a.store != nil {
		observers = append(observers, store.NewRecorder(a.store, src.Name(), cfg.Execution.SimulationMode, 0))
	}
	if n := b.buildNotifier(); n != nil {
		observers = append(observers, notifier.NewTickObserver(n))
	}
	a.session = engine.NewSession(eng, observers...)

	if cfg.HTTP.Enabled {
		if a.results, err = backtest.NewResultStore(cfg.Backtest.ResultDir); err != nil {
			return nil, fmt.Errorf("open backtest results: %w", err)
		}
		srvCfg := livehttp.ServerConfig{Addr: cfg.HTTP.Addr, Session: a.session, Backtests: a.results, Now: b.clock}
		if a.store != nil {
			srvCfg.Store = a.store
		}
		if a.http, err = livehttp.NewServer(srvCfg); err != nil {
			return nil, err
		}
	}

	a.Summary = NewStartupSummary(cfg, eng.CapitalSummary(), src.Name())
	return a, nil
}

func (b *AppBuilder) fundingGuard() *solana.FundingGuard {
	reader := b.balance
	if reader == nil {
		w := b.cfg.Wallet
		reader = solana.NewRPCClient(w.RPCEndpoint, time.Duration(w.TimeoutSeconds)*time.Second)
	}
	return solana.NewFundingGuard(reader, b.cfg.Wallet.Address, b.cfg.Capital.ToCapital())
}

func (b *AppBuilder) buildExecutor() *jupiter.Executor {
	ec := b.cfg.Executor
	client := jupiter.NewClient(jupiter.Config{
		PriceURL: b.cfg.Feed.JupiterPriceURL,
		QuoteURL: ec.QuoteURL,
		SOLMint:  b.cfg.Feed.SOLMint,
		Timeout:  time.Duration(ec.TimeoutSeconds) * time.Second,
	})
	if b.signer == nil {
		logger.Warnf("live mode without a transaction signer: every on-chain execution will be declined")
	}
	return jupiter.NewExecutor(client, b.signer, jupiter.ExecutorConfig{
		QuoteMint:        ec.QuoteMint,
		SlippageBps:      ec.SlippageBps,
		BreakerThreshold: ec.BreakerThreshold,
		BreakerCooldown:  time.Duration(ec.BreakerCooldownSeconds) * time.Second,
	})
}

// buildPriceSource 聚合所有已配置的行情源；binance_stream 需要额外的后台连接。
func (b *AppBuilder) buildPriceSource() (engine.PriceSource, *binance.StreamSource, error) {
	fc := b.cfg.Feed
	sources := b.sources
	var stream *binance.StreamSource
	if len(sources) == 0 {
		for _, name := range fc.NormalizedSources() {
			switch name {
			case config.FeedJupiter:
				sources = append(sources, jupiter.NewClient(jupiter.Config{PriceURL: fc.JupiterPriceURL, SOLMint: fc.SOLMint, Timeout: fc.Timeout()}))
			case config.FeedPyth:
				sources = append(sources, pyth.NewClient(pyth.Config{HermesURL: fc.PythHermesURL, FeedID: fc.PythFeedID, Timeout: fc.Timeout()}))
			case config.FeedBinance:
				sources = append(sources, binance.NewREST(binance.Config{Symbol: fc.BinanceSymbol, RESTBaseURL: fc.BinanceBaseURL, HTTPTimeout: fc.Timeout()}))
			case config.FeedBinanceStream:
				stream = binance.NewStream(binance.Config{Symbol: fc.BinanceSymbol, StreamURL: fc.BinanceStreamURL, MaxAge: 2 * b.cfg.App.TickInterval()})
				sources = append(sources, stream)
			case config.FeedMock:
				logger.Warnf("feed: using the mock random-walk price source")
				sources = append(sources, feed.NewMock(fc.MockBasePrice, fc.MockVolatility, fc.MockSeed))
			default:
				return nil, nil, fmt.Errorf("unknown feed source %q", name)
			}
		}
	}
	agg, err := feed.NewAggregate(sources,
		feed.WithTimeout(fc.Timeout()),
		feed.WithBreakers(feedBreakerThreshold, feedBreakerCooldown),
		feed.WithAggregateClock(b.clock),
	)
	if err != nil {
		return nil, nil, err
	}
	return agg, stream, nil
}

func (b *AppBuilder) buildNotifier() notifier.TextNotifier {
	if b.notifier != nil {
		return b.notifier
	}
	tg := b.cfg.Notify.Telegram
	if !tg.Enabled {
		return nil
	}
	return notifier.NewTelegram(tg.BotToken, tg.ChatID)
}

func openStore(path string) (store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s, err := sqlite.NewSqliteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return s, nil
}
