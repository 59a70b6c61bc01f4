package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"classtrack/backend/internal/model"
)

// ProfileRepository 用户档案数据访问接口
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (*model.Profile, error)
	// SetActivePeriod 更新（不存在则创建）档案的活动周期指针
	SetActivePeriod(ctx context.Context, uid, periodID string) error
}

type profileRepo struct {
	db *gorm.DB
}

// NewProfileRepo 创建 ProfileRepository 实例
func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) Get(ctx context.Context, uid string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) SetActivePeriod(ctx context.Context, uid, periodID string) error {
	profile := model.Profile{UID: uid, ActivePeriodID: periodID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"active_period_id": periodID,
				"updated_at":       gorm.Expr("NOW()"),
			}),
		}).
		Create(&profile).Error
}
