package sqlite

import (
	"context"
	"errors"
	"time"

	"solbot/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type priceRepository struct {
	db *gorm.DB
}

func NewPriceRepo(db *gorm.DB) *priceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) Insert(ctx context.Context, rec *model.PriceRecord) error {
	if rec == nil {
		return errors.New("price record cannot be nil")
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// Since 按时间升序返回；limit<=0 表示不限制。
func (r *priceRepository) Since(ctx context.Context, since time.Time, limit int) ([]model.PriceRecord, error) {
	var out []model.PriceRecord
	q := r.db.WithContext(ctx).Where("ts >= ?", since.UnixMilli()).Order("ts ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type fillRepository struct {
	db *gorm.DB
}

func NewFillRepo(db *gorm.DB) *fillRepository {
	return &fillRepository{db: db}
}

// Insert 以 fill_id 幂等写入，重复写入同一成交不会产生新行。
func (r *fillRepository) Insert(ctx context.Context, rec *model.FillRecord) error {
	if rec == nil {
		return errors.New("fill record cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fill_id"}},
		DoNothing: true,
	}).Create(rec).Error
}

func (r *fillRepository) Since(ctx context.Context, since time.Time) ([]model.FillRecord, error) {
	var out []model.FillRecord
	if err := r.db.WithContext(ctx).
		Where("ts >= ?", since.UnixMilli()).
		Order("ts ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fillRepository) ListRecent(ctx context.Context, limit int) ([]model.FillRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.FillRecord
	if err := r.db.WithContext(ctx).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) *snapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Insert(ctx context.Context, rec *model.SnapshotRecord) error {
	if rec == nil {
		return errors.New("snapshot record cannot be nil")
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *snapshotRepository) Since(ctx context.Context, since time.Time) ([]model.SnapshotRecord, error) {
	var out []model.SnapshotRecord
	if err := r.db.WithContext(ctx).
		Where("ts >= ?", since.UnixMilli()).
		Order("ts ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Latest 返回会话最新的快照，sessionID 为空时不限会话；没有记录返回 nil。
func (r *snapshotRepository) Latest(ctx context.Context, sessionID string) (*model.SnapshotRecord, error) {
	var rec model.SnapshotRecord
	q := r.db.WithContext(ctx).Order("ts DESC, id DESC")
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	err := q.First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
