package app

import (
	"solbot/internal/analysis/indicator"
	"solbot/internal/config"
	"solbot/internal/engine"
	"solbot/internal/strategy"
)

// EngineConfig maps the validated configuration onto one engine session.
func EngineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Capital:        cfg.Capital.ToCapital(),
		StartingCash:   cfg.Execution.StartingCash,
		FeeRate:        cfg.Execution.FeeRate,
		SlippageMinPct: cfg.Execution.SlippageMinPct,
		SlippageMaxPct: cfg.Execution.SlippageMaxPct,
		SimulationMode: cfg.Execution.SimulationMode,
		HistoryLimit:   cfg.Strategy.HistoryLimit,
		Thresholds:     Thresholds(cfg.Strategy),
	}
}

func IndicatorSettings(s config.StrategyConfig) indicator.Settings {
	return indicator.Settings{
		EMAFast:    s.EMAFast,
		EMASlow:    s.EMASlow,
		SMAPeriod:  s.SMAPeriod,
		RSIPeriod:  s.RSIPeriod,
		BBPeriod:   s.BBPeriod,
		BBStdDev:   s.BBStdDev,
		MinHistory: s.MinHistory,
	}
}

func Thresholds(s config.StrategyConfig) strategy.Thresholds {
	return strategy.Thresholds{
		MinHistory:    s.MinHistory,
		RSIOverbought: s.RSIOverbought,
		RSIOversold:   s.RSIOversold,
	}
}
