package store

import (
	"context"
	"encoding/json"

	"solbot/internal/engine"
	"solbot/internal/logger"
	"solbot/internal/store/model"

	"gorm.io/datatypes"
)

// Recorder 是 engine.Observer：每个 tick 在一个事务里写入价格、成交与快照。
// 快照在有成交时或每 snapshotEvery 个 tick 写一次。
type Recorder struct {
	store         Store
	source        string
	simulated     bool
	snapshotEvery int
	ticks         int
}

func NewRecorder(s Store, source string, simulated bool, snapshotEvery int) *Recorder {
	if snapshotEvery <= 0 {
		snapshotEvery = 12
	}
	return &Recorder{store: s, source: source, simulated: simulated, snapshotEvery: snapshotEvery}
}

func (r *Recorder) OnTick(ctx context.Context, rep engine.TickReport) {
	if rep.Skipped {
		return
	}
	if err := r.Record(ctx, rep); err != nil {
		logger.Warnf("store: record tick %d failed: %v", rep.Seq, err)
	}
}

func (r *Recorder) Record(ctx context.Context, rep engine.TickReport) (err error) {
	r.ticks++
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	price := &model.PriceRecord{
		SessionID: rep.SessionID,
		Timestamp: rep.Time.UnixMilli(),
		Price:     rep.Price,
		Source:    r.source,
		Metadata:  jsonOf(map[string]any{"signal": rep.Signal.String(), "indicators": rep.Indicators}),
	}
	if err = uow.Prices().Insert(ctx, price); err != nil {
		return err
	}
	if rep.Fill != nil {
		if err = uow.Fills().Insert(ctx, FillRecordOf(rep)); err != nil {
			return err
		}
	}
	if rep.Fill != nil || r.ticks%r.snapshotEvery == 0 {
		if err = uow.Snapshots().Insert(ctx, SnapshotRecordOf(rep, r.simulated)); err != nil {
			return err
		}
	}
	return uow.Commit()
}

// FillRecordOf converts the committed fill of a tick.
func FillRecordOf(rep engine.TickReport) *model.FillRecord {
	f := rep.Fill
	meta := map[string]any{"breached": rep.Breached, "signal": rep.Signal.String()}
	return &model.FillRecord{
		FillID:      f.ID,
		SessionID:   rep.SessionID,
		Seq:         f.Seq,
		Timestamp:   f.Timestamp.UnixMilli(),
		Side:        string(f.Side),
		Intent:      rep.Intent.String(),
		Amount:      f.Amount,
		FillPrice:   f.FillPrice,
		MarkPrice:   f.MarkPrice,
		Value:       f.Amount * f.FillPrice,
		Fee:         f.Fee,
		SlippagePct: f.SlippagePct,
		RealizedPnL: f.RealizedPnL,
		Simulated:   f.Simulated,
		TotalBefore: rep.TotalBefore,
		TotalAfter:  rep.Ledger.TotalValue,
		Metadata:    jsonOf(meta),
	}
}

// SnapshotRecordOf converts the ledger view of a tick.
func SnapshotRecordOf(rep engine.TickReport, simulated bool) *model.SnapshotRecord {
	v := rep.Ledger
	rec := &model.SnapshotRecord{
		SessionID:      rep.SessionID,
		Timestamp:      rep.Time.UnixMilli(),
		CashBalance:    v.CashBalance,
		PositionAmount: v.PositionAmount,
		MarkPrice:      v.MarkPrice,
		TotalValue:     v.TotalValue,
		PeakTotalValue: v.PeakTotalValue,
		RealizedPnL:    v.RealizedPnL,
		UnrealizedPnL:  v.UnrealizedPnL,
		FeesPaid:       v.FeesPaid,
		DrawdownPct:    v.DrawdownPct,
		Simulated:      simulated,
		Metadata:       jsonOf(map[string]any{"capital_utilization_pct": v.CapitalUtilizationPct, "fill_count": v.FillCount}),
	}
	if v.Position != nil {
		rec.EntryPrice = v.Position.EntryPrice
	}
	return rec
}

func jsonOf(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
