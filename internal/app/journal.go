package app

import (
	"context"

	"solbot/internal/engine"
	"solbot/internal/logger"
)

// TradeJournal 把每笔成交写入 CSV 成交日志。
type TradeJournal struct{}

func (TradeJournal) OnTick(_ context.Context, rep engine.TickReport) {
	f := rep.Fill
	if f == nil {
		return
	}
	logger.LogTrade(logger.TradeRecord{
		Time:        f.Timestamp,
		Session:     rep.SessionID,
		Seq:         f.Seq,
		Side:        string(f.Side),
		Amount:      f.Amount,
		FillPrice:   f.FillPrice,
		Fee:         f.Fee,
		SlippagePct: f.SlippagePct,
		RealizedPnL: f.RealizedPnL,
		Simulated:   f.Simulated,
	})
}
