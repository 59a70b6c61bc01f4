package repository

import (
	"context"

	"gorm.io/gorm"

	pkgredis "classtrack/backend/pkg/redis"
)

// Repository 所有 Repository 的聚合入口
// 数据库侧（云端文档、周期、档案、用户）走 gorm；
// 本地工作集走 Redis Blob 驱动，不参与数据库事务
type Repository struct {
	db *gorm.DB

	User    UserRepository
	Period  PeriodRepository
	Profile ProfileRepository
	Cloud   CloudRepository
	Local   *LocalRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, store LocalStore) *Repository {
	return &Repository{
		db:      db,
		User:    NewUserRepo(db),
		Period:  NewPeriodRepo(db),
		Profile: NewProfileRepo(db),
		Cloud:   NewCloudRepo(db),
		Local:   NewLocalRepository(store),
	}
}

// NewRedisLocalStore 基于 pkg/redis 客户端创建本地 Blob 驱动
func NewRedisLocalStore(client *pkgredis.Client) LocalStore {
	return &redisLocalStore{client: client}
}

// BeginTx 开启数据库事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到指定事务连接的 Repository 副本（仅数据库侧）
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{
		db:      tx,
		User:    NewUserRepo(tx),
		Period:  NewPeriodRepo(tx),
		Profile: NewProfileRepo(tx),
		Cloud:   NewCloudRepo(tx),
		Local:   r.Local,
	}
}
