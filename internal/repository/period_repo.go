package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"classtrack/backend/internal/model"
)

// PeriodRepository 出勤周期数据访问接口
type PeriodRepository interface {
	// CreateIfAbsent 创建周期记录；已存在时为 no-op（幂等）
	CreateIfAbsent(ctx context.Context, period *model.Period) error
	Exists(ctx context.Context, uid, periodID string) (bool, error)
	List(ctx context.Context, uid string) ([]model.Period, error)
}

type periodRepo struct {
	db *gorm.DB
}

// NewPeriodRepo 创建 PeriodRepository 实例
func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) CreateIfAbsent(ctx context.Context, period *model.Period) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(period).Error
}

func (r *periodRepo) Exists(ctx context.Context, uid, periodID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Period{}).
		Where("uid = ? AND period_id = ?", uid, periodID).
		Count(&count).Error
	return count > 0, err
}

func (r *periodRepo) List(ctx context.Context, uid string) ([]model.Period, error) {
	var periods []model.Period
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("created_at ASC").
		Find(&periods).Error
	return periods, err
}
