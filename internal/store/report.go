package store

import (
	"context"
	"time"

	"solbot/internal/analysis/performance"
)

// BuildReport 读取最近 hours 小时的记录并生成分析报告。
func BuildReport(ctx context.Context, s Store, hours int, now time.Time) (performance.Report, error) {
	if hours <= 0 {
		hours = 24
	}
	stats, err := s.Statistics(ctx)
	if err != nil {
		return performance.Report{}, err
	}
	data, err := Collect(ctx, s, now.Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return performance.Report{}, err
	}

	prices := make([]performance.PricePoint, 0, len(data.Prices))
	for _, p := range data.Prices {
		prices = append(prices, performance.PricePoint{Time: p.Time(), Price: p.Price})
	}
	trades := make([]performance.Trade, 0, len(data.Fills))
	for _, f := range data.Fills {
		trades = append(trades, performance.Trade{
			Time:        f.Time(),
			Side:        f.Side,
			Amount:      f.Amount,
			Price:       f.FillPrice,
			Fee:         f.Fee,
			RealizedPnL: f.RealizedPnL,
			Simulated:   f.Simulated,
		})
	}
	equity := make([]performance.EquityPoint, 0, len(data.Snapshots))
	for _, snap := range data.Snapshots {
		equity = append(equity, performance.EquityPoint{
			Time:          snap.Time(),
			TotalValue:    snap.TotalValue,
			RealizedPnL:   snap.RealizedPnL,
			UnrealizedPnL: snap.UnrealizedPnL,
		})
	}
	rep := performance.Build(hours, prices, trades, equity, stats)
	rep.GeneratedAt = now.UTC()
	return rep, nil
}
