package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultTickInterval      = 5
	defaultMaxPositionPct    = 80
	defaultReserveSOL        = 0.05
	defaultMaxDrawdownPct    = 20
	defaultFeeRate           = 0.0025
	defaultSlippageMinPct    = 0.1
	defaultSlippageMaxPct    = 0.5
	defaultMinHistory        = 50
	defaultEMAFast           = 12
	defaultEMASlow           = 26
	defaultSMAPeriod         = 20
	defaultRSIPeriod         = 14
	defaultBBPeriod          = 20
	defaultBBStdDev          = 2
	defaultRSIOverbought     = 70
	defaultRSIOversold       = 30
	defaultHistoryLimit      = 500
	defaultFeedTimeout       = 10
	defaultJupiterPriceURL   = "https://api.jup.ag/price/v2"
	defaultSOLMint           = "So11111111111111111111111111111111111111112"
	defaultUSDCMint          = "EPjFWJd5Fw6FBvNTmQ4KHP7ePgkyNuLxLMRoGixNLwaU"
	defaultPythHermesURL     = "https://hermes.pyth.network"
	defaultPythFeedID        = "J83mCTdkBStKF7yD1ewtg7d6cgt1YG11E9cujiFFJmD9"
	defaultBinanceSymbol     = "SOLUSDT"
	defaultBinanceStreamURL  = "wss://stream.binance.com:9443/ws"
	defaultMockBasePrice     = 200
	defaultMockVolatility    = 0.02
	defaultStorePath         = "data/solbot.db"
	defaultRetentionDays     = 30
	defaultBacktestDir       = "data/backtest"
	defaultBacktestWarmup    = 50
	defaultHTTPAddr          = ":9991"
	defaultRPCEndpoint       = "https://api.mainnet-beta.solana.com"
	defaultWalletTimeout     = 10
	defaultQuoteURL          = "https://quote-api.jup.ag/v6/quote"
	defaultSlippageBps       = 50
	defaultBreakerThreshold  = 3
	defaultBreakerCooldown   = 60
	defaultExecutorTimeout   = 15
)

var defaultFeedSources = []string{FeedJupiter, FeedPyth}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Capital.applyDefaults(keys)
	c.Execution.applyDefaults(keys, c.Capital.TradingCapitalSOL)
	c.Strategy.applyDefaults(keys)
	c.Feed.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Wallet.applyDefaults(keys, c.Execution.SimulationMode)
	c.Executor.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		intFieldDefault("app.tick_interval_seconds", &a.TickIntervalSeconds, defaultTickInterval),
	)
}

func (c *CapitalConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("capital.max_position_size_pct", &c.MaxPositionSizePct, defaultMaxPositionPct),
		floatFieldDefault("capital.reserve_balance_sol", &c.ReserveBalanceSOL, defaultReserveSOL),
		floatFieldDefault("capital.max_drawdown_pct", &c.MaxDrawdownPct, defaultMaxDrawdownPct),
	)
}

func (e *ExecutionConfig) applyDefaults(keys keySet, tradingCapital float64) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("execution.simulation_mode", &e.SimulationMode, true),
		floatFieldDefault("execution.fee_rate", &e.FeeRate, defaultFeeRate),
		floatFieldDefault("execution.slippage_min_pct", &e.SlippageMinPct, defaultSlippageMinPct),
		floatFieldDefault("execution.slippage_max_pct", &e.SlippageMaxPct, defaultSlippageMaxPct),
		floatFieldDefault("execution.starting_cash", &e.StartingCash, tradingCapital),
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("strategy.min_history", &s.MinHistory, defaultMinHistory),
		intFieldDefault("strategy.ema_fast", &s.EMAFast, defaultEMAFast),
		intFieldDefault("strategy.ema_slow", &s.EMASlow, defaultEMASlow),
		intFieldDefault("strategy.sma_period", &s.SMAPeriod, defaultSMAPeriod),
		intFieldDefault("strategy.rsi_period", &s.RSIPeriod, defaultRSIPeriod),
		intFieldDefault("strategy.bb_period", &s.BBPeriod, defaultBBPeriod),
		floatFieldDefault("strategy.bb_stddev", &s.BBStdDev, defaultBBStdDev),
		floatFieldDefault("strategy.rsi_overbought", &s.RSIOverbought, defaultRSIOverbought),
		floatFieldDefault("strategy.rsi_oversold", &s.RSIOversold, defaultRSIOversold),
		intFieldDefault("strategy.history_limit", &s.HistoryLimit, defaultHistoryLimit),
	)
}

func (f *FeedConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "feed.sources",
			need:  func() bool { return len(f.Sources) == 0 },
			apply: func() { f.Sources = append([]string(nil), defaultFeedSources...) },
		},
		intFieldDefault("feed.timeout_seconds", &f.TimeoutSeconds, defaultFeedTimeout),
		stringFieldDefault("feed.jupiter_price_url", &f.JupiterPriceURL, defaultJupiterPriceURL),
		stringFieldDefault("feed.sol_mint", &f.SOLMint, defaultSOLMint),
		stringFieldDefault("feed.pyth_hermes_url", &f.PythHermesURL, defaultPythHermesURL),
		stringFieldDefault("feed.pyth_feed_id", &f.PythFeedID, defaultPythFeedID),
		stringFieldDefault("feed.binance_symbol", &f.BinanceSymbol, defaultBinanceSymbol),
		stringFieldDefault("feed.binance_stream_url", &f.BinanceStreamURL, defaultBinanceStreamURL),
		floatFieldDefault("feed.mock_base_price", &f.MockBasePrice, defaultMockBasePrice),
		floatFieldDefault("feed.mock_volatility", &f.MockVolatility, defaultMockVolatility),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("store.enabled", &s.Enabled, true),
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		intFieldDefault("store.retention_days", &s.RetentionDays, defaultRetentionDays),
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.result_dir", &b.ResultDir, defaultBacktestDir),
		boolFieldDefault("backtest.chart", &b.Chart, true),
		intFieldDefault("backtest.warmup", &b.Warmup, defaultBacktestWarmup),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
	)
}

func (w *WalletConfig) applyDefaults(keys keySet, simulation bool) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("wallet.rpc_endpoint", &w.RPCEndpoint, defaultRPCEndpoint),
		boolFieldDefault("wallet.check_funding", &w.CheckFunding, !simulation),
		intFieldDefault("wallet.timeout_seconds", &w.TimeoutSeconds, defaultWalletTimeout),
	)
}

func (e *ExecutorConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("executor.quote_url", &e.QuoteURL, defaultQuoteURL),
		stringFieldDefault("executor.quote_mint", &e.QuoteMint, defaultUSDCMint),
		intFieldDefault("executor.slippage_bps", &e.SlippageBps, defaultSlippageBps),
		intFieldDefault("executor.breaker_threshold", &e.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("executor.breaker_cooldown_seconds", &e.BreakerCooldownSeconds, defaultBreakerCooldown),
		intFieldDefault("executor.timeout_seconds", &e.TimeoutSeconds, defaultExecutorTimeout),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// floatFieldDefault 只在键未显式设置时生效，因此显式的 0 会被保留。
func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
