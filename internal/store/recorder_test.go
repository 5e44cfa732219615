package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"solbot/internal/engine"
	"solbot/internal/ledger"
	"solbot/internal/store"
	"solbot/internal/store/sqlite"
	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWritesTicks(t *testing.T) {
	s, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "rec.db"))
	require.NoError(t, err)
	defer s.Close()

	rec := store.NewRecorder(s, "mock", true, 3)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 4; i++ {
		rep := engine.TickReport{
			Seq:         i,
			SessionID:   "sess",
			Time:        base.Add(time.Duration(i) * time.Second),
			Price:       150,
			Signal:      types.IntentHold,
			Intent:      types.IntentHold,
			Ledger:      ledger.View{CashBalance: 20, TotalValue: 20, PeakTotalValue: 20, MarkPrice: 150},
			TotalBefore: 20,
		}
		if i == 2 {
			rep.Intent = types.IntentBuy
			rep.Fill = &ledger.Fill{
				ID: "fill-1", Seq: 1, Side: types.SideBuy, Amount: 0.08, FillPrice: 150.3, MarkPrice: 150,
				Fee: 0.0002, Simulated: true, Timestamp: rep.Time,
			}
			rep.Ledger = ledger.View{CashBalance: 7.9758, PositionAmount: 0.08, TotalValue: 19.9758, MarkPrice: 150,
				Position: &ledger.Position{EntryPrice: 150.3, Amount: 0.08}}
		}
		rec.OnTick(ctx, rep)
	}
	rec.OnTick(ctx, engine.TickReport{Skipped: true, Time: base})

	exp, err := store.Collect(ctx, s, base)
	require.NoError(t, err)
	assert.Len(t, exp.Prices, 4)
	require.Len(t, exp.Fills, 1)
	f := exp.Fills[0]
	assert.Equal(t, "fill-1", f.FillID)
	assert.Equal(t, "BUY", f.Intent)
	assert.InDelta(t, 19.9758, f.TotalAfter, 1e-9)
	assert.Equal(t, 20.0, f.TotalBefore)
	// fill tick + every third tick
	require.Len(t, exp.Snapshots, 2)
	assert.Equal(t, 150.3, exp.Snapshots[0].EntryPrice)
}

func TestFillRecordKeepsEngineTotals(t *testing.T) {
	rep := engine.TickReport{
		SessionID:   "sess",
		Intent:      types.IntentSell,
		TotalBefore: 21.5,
		Fill: &ledger.Fill{ID: "f", Seq: 2, Side: types.SideSell, Amount: 0.08, FillPrice: 219.3, MarkPrice: 220,
			Fee: 0.0002, Timestamp: time.Unix(0, 0)},
		Ledger: ledger.View{CashBalance: 21.4438, TotalValue: 21.4438},
	}
	rec := store.FillRecordOf(rep)
	assert.Equal(t, 21.5, rec.TotalBefore)
	assert.Equal(t, 21.4438, rec.TotalAfter)
	assert.InDelta(t, 0.08*219.3, rec.Value, 1e-12)
}
