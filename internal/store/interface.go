package store

import (
	"context"
	"time"

	"solbot/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	Prices() PriceRepository
	Fills() FillRepository
	Snapshots() SnapshotRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	Prices() PriceRepository
	Fills() FillRepository
	Snapshots() SnapshotRepository
	// Statistics summarises every table.
	Statistics(ctx context.Context) (Statistics, error)
	// Cleanup deletes rows older than the cutoff and returns how many went.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

type PriceRepository interface {
	Insert(ctx context.Context, rec *model.PriceRecord) error
	Since(ctx context.Context, since time.Time, limit int) ([]model.PriceRecord, error)
}

type FillRepository interface {
	Insert(ctx context.Context, rec *model.FillRecord) error
	Since(ctx context.Context, since time.Time) ([]model.FillRecord, error)
	ListRecent(ctx context.Context, limit int) ([]model.FillRecord, error)
}

type SnapshotRepository interface {
	Insert(ctx context.Context, rec *model.SnapshotRecord) error
	Since(ctx context.Context, since time.Time) ([]model.SnapshotRecord, error)
	Latest(ctx context.Context, sessionID string) (*model.SnapshotRecord, error)
}

// TableStats 对应单张表的统计信息。
type TableStats struct {
	Rows  int64     `json:"rows"`
	First time.Time `json:"first,omitempty"`
	Last  time.Time `json:"last,omitempty"`
}

type Statistics struct {
	Prices    TableStats `json:"prices"`
	Fills     TableStats `json:"fills"`
	Snapshots TableStats `json:"snapshots"`
	MinPrice  float64    `json:"min_price"`
	MaxPrice  float64    `json:"max_price"`
	AvgPrice  float64    `json:"avg_price"`
	SimFills  int64      `json:"sim_fills"`
	LiveFills int64      `json:"live_fills"`
}

// Export 是某时间窗口内的全部记录，用于 JSON 导出与报告。
type Export struct {
	Since     time.Time              `json:"since"`
	Generated time.Time              `json:"generated"`
	Prices    []model.PriceRecord    `json:"prices"`
	Fills     []model.FillRecord     `json:"fills"`
	Snapshots []model.SnapshotRecord `json:"snapshots"`
}

// Collect 读取 since 之后的全部记录。
func Collect(ctx context.Context, s Store, since time.Time) (Export, error) {
	out := Export{Since: since, Generated: time.Now().UTC()}
	var err error
	if out.Prices, err = s.Prices().Since(ctx, since, 0); err != nil {
		return Export{}, err
	}
	if out.Fills, err = s.Fills().Since(ctx, since); err != nil {
		return Export{}, err
	}
	if out.Snapshots, err = s.Snapshots().Since(ctx, since); err != nil {
		return Export{}, err
	}
	return out, nil
}
