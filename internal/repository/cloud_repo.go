package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"classtrack/backend/internal/model"
)

// MergeFunc 在已锁定的文档记录集上计算新的规范记录集。
// 读当前状态、计算合并、写回结果整体处于同一数据库事务内，
// 不会与其他写者在同一 (uid, period, date) 文档上交错。
type MergeFunc func(current []model.LectureRecord) ([]model.LectureRecord, error)

// CloudRepository 云端出勤文档访问接口
// 文档的概念路径为 users/{uid}/periods/{periodId}/attendance/{date}；
// 写入只允许通过 RunTransaction 的合并路径，绝不提供盲写 set
type CloudRepository interface {
	GetDocument(ctx context.Context, uid, periodID, date string) (*model.AttendanceDocument, error)
	ListDocuments(ctx context.Context, uid, periodID string) ([]model.AttendanceDocument, error)
	// ListAllDocuments 列出用户所有周期下的全部文档（登录水合用）
	ListAllDocuments(ctx context.Context, uid string) ([]model.AttendanceDocument, error)
	// ListLegacyDocuments 列出仍为旧版聚合模式的文档（迁移用）
	ListLegacyDocuments(ctx context.Context, uid string) ([]model.AttendanceDocument, error)
	// RunTransaction 以比较并交换语义对单个文档执行原子合并写
	RunTransaction(ctx context.Context, uid, periodID, date string, fn MergeFunc) error
}

type cloudRepo struct {
	db *gorm.DB
}

// NewCloudRepo 创建 CloudRepository 实例
func NewCloudRepo(db *gorm.DB) CloudRepository {
	return &cloudRepo{db: db}
}

func (r *cloudRepo) GetDocument(ctx context.Context, uid, periodID, date string) (*model.AttendanceDocument, error) {
	var doc model.AttendanceDocument
	err := r.db.WithContext(ctx).
		Where("uid = ? AND period_id = ? AND date = ?", uid, periodID, date).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *cloudRepo) ListDocuments(ctx context.Context, uid, periodID string) ([]model.AttendanceDocument, error) {
	var docs []model.AttendanceDocument
	err := r.db.WithContext(ctx).
		Where("uid = ? AND period_id = ?", uid, periodID).
		Order("date ASC").
		Find(&docs).Error
	return docs, err
}

func (r *cloudRepo) ListAllDocuments(ctx context.Context, uid string) ([]model.AttendanceDocument, error) {
	var docs []model.AttendanceDocument
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("period_id ASC, date ASC").
		Find(&docs).Error
	return docs, err
}

func (r *cloudRepo) ListLegacyDocuments(ctx context.Context, uid string) ([]model.AttendanceDocument, error) {
	var docs []model.AttendanceDocument
	err := r.db.WithContext(ctx).
		Where("uid = ? AND schema_version = ?", uid, model.SchemaLegacyAggregate).
		Order("period_id ASC, date ASC").
		Find(&docs).Error
	return docs, err
}

func (r *cloudRepo) RunTransaction(ctx context.Context, uid, periodID, date string, fn MergeFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 确保文档行存在（空载荷），使后续行锁有落点
		seed := model.AttendanceDocument{
			UID:           uid,
			PeriodID:      periodID,
			Date:          date,
			SchemaVersion: model.SchemaLectureRecords,
			Payload:       model.JSONPayload("[]"),
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		// 2. SELECT ... FOR UPDATE 锁定文档行，串行化并发合并
		var doc model.AttendanceDocument
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uid = ? AND period_id = ? AND date = ?", uid, periodID, date).
			First(&doc).Error
		if err != nil {
			return err
		}

		// 3. 读取时升级旧版载荷并计算合并结果
		current, err := doc.DecodeRecords()
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}

		// 4. 写回当前版本载荷
		payload, err := model.EncodeRecords(next)
		if err != nil {
			return err
		}
		return tx.Model(&model.AttendanceDocument{}).
			Where("uid = ? AND period_id = ? AND date = ?", uid, periodID, date).
			Updates(map[string]interface{}{
				"schema_version": model.SchemaLectureRecords,
				"payload":        payload,
				"updated_at":     time.Now().UTC(),
			}).Error
	})
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
