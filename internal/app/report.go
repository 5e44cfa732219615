package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"solbot/internal/analysis/performance"
	"solbot/internal/config"
	"solbot/internal/store"
)

// GenerateReport 汇总最近 hours 小时的持久化数据；out 为空时以 JSON 写入 w。
func GenerateReport(ctx context.Context, cfg *config.Config, hours int, out string, w io.Writer) (performance.Report, error) {
	s, err := openStore(cfg.Store.Path)
	if err != nil {
		return performance.Report{}, err
	}
	defer s.Close()
	rep, err := store.BuildReport(ctx, s, hours, time.Now())
	if err != nil {
		return performance.Report{}, fmt.Errorf("build report: %w", err)
	}
	if out != "" {
		return rep, performance.WriteFile(out, rep)
	}
	if w != nil {
		return rep, performance.Encode(w, performance.FormatJSON, rep)
	}
	return rep, nil
}
