package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"solbot/internal/analysis/performance"
	"solbot/internal/backtest"
	"solbot/internal/config"
	"solbot/internal/gateway/feed"
)

type BacktestRequest struct {
	CSVPath string
	OutDir  string // 为空时使用 backtest.result_dir
	Format  performance.Format
	Name    string
}

type BacktestOutcome struct {
	Result    *backtest.Result
	Artifacts backtest.Artifacts
	Database  string
}

// RunBacktest 读取 CSV，回放进引擎，结果写入 runs.db 并导出。
func RunBacktest(ctx context.Context, cfg *config.Config, req BacktestRequest) (*BacktestOutcome, error) {
	if strings.TrimSpace(req.CSVPath) == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	points, err := feed.LoadCSVFile(req.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", req.CSVPath, err)
	}
	name := req.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(req.CSVPath), filepath.Ext(req.CSVPath))
	}
	settings := IndicatorSettings(cfg.Strategy)
	runner, err := backtest.NewRunner(backtest.Config{
		Name:       name,
		Source:     req.CSVPath,
		Engine:     EngineConfig(cfg),
		Indicators: settings,
		Warmup:     cfg.Backtest.Warmup,
		Seed:       cfg.Backtest.Seed,
	})
	if err != nil {
		return nil, err
	}
	res, err := runner.Run(ctx, points)
	if err != nil {
		return nil, err
	}

	outDir := req.OutDir
	if outDir == "" {
		outDir = cfg.Backtest.ResultDir
	}
	results, err := backtest.NewResultStore(outDir)
	if err != nil {
		return nil, err
	}
	defer results.Close()
	if err := results.SaveResult(ctx, res); err != nil {
		return nil, fmt.Errorf("save backtest: %w", err)
	}
	art, err := backtest.Export(outDir, res, backtest.ExportOptions{
		Format:     req.Format,
		Chart:      cfg.Backtest.Chart,
		Indicators: settings,
	})
	if err != nil {
		return nil, err
	}
	return &BacktestOutcome{Result: res, Artifacts: art, Database: results.Path()}, nil
}
