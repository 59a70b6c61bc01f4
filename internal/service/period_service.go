package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

// ── 周期模块业务错误 ──

var ErrPeriodIDInvalid = errors.New("周期标识无效")

// PeriodService 出勤周期业务接口
// 周期是只增不删的时间分区；重置不删除也不修改历史周期的数据，
// 只改变后续写入的落点与"当前"视图。指针切换前本地工作集
// 先归档到旧周期的云端文档并清空，保证新周期从零开始统计
type PeriodService interface {
	// ActivePeriod 返回档案记录的活动周期，未设置时默认当前自然月
	ActivePeriod(ctx context.Context, uid string) (string, error)
	// StartNewPeriod 原子地创建周期（已存在则幂等跳过）并更新活动指针
	StartNewPeriod(ctx context.Context, uid, periodID string) (string, error)
	// ResetPeriod 以当前 UTC 年月开启新周期
	ResetPeriod(ctx context.Context, uid string) (string, error)
	List(ctx context.Context, uid string) ([]model.Period, error)
}

type periodService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(repo *repository.Repository, logger *zap.Logger) PeriodService {
	return &periodService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── ActivePeriod ──────────────────────

func (s *periodService) ActivePeriod(ctx context.Context, uid string) (string, error) {
	profile, err := s.repo.Profile.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CurrentPeriodID(s.now()), nil
		}
		s.logger.Error("查询档案失败", zap.Error(err))
		return "", err
	}
	if profile.ActivePeriodID == "" {
		return CurrentPeriodID(s.now()), nil
	}
	return profile.ActivePeriodID, nil
}

// ────────────────────── StartNewPeriod ──────────────────────

func (s *periodService) StartNewPeriod(ctx context.Context, uid, periodID string) (string, error) {
	if periodID == "" {
		periodID = CurrentPeriodID(s.now())
	}
	if len(periodID) > 64 {
		return "", ErrPeriodIDInvalid
	}

	// 指针真正切换时，先把本地工作集归档到旧周期再清空当前视图；
	// 归档失败则指针不动，重试安全（合并写幂等）
	oldPeriod, err := s.ActivePeriod(ctx, uid)
	if err != nil {
		return "", err
	}
	if oldPeriod != periodID {
		if err := s.archiveWorkingSet(ctx, uid, oldPeriod); err != nil {
			s.logger.Error("归档本地工作集失败", zap.String("period", oldPeriod), zap.Error(err))
			return "", err
		}
	}

	// 周期创建与指针更新必须同一事务：并发读者绝不能观察到
	// 档案指向一个尚不存在的周期
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	if err := txRepo.Period.CreateIfAbsent(ctx, &model.Period{UID: uid, PeriodID: periodID}); err != nil {
		tx.Rollback()
		s.logger.Error("创建周期失败", zap.String("period", periodID), zap.Error(err))
		return "", err
	}

	if err := txRepo.Profile.SetActivePeriod(ctx, uid, periodID); err != nil {
		tx.Rollback()
		s.logger.Error("更新活动周期指针失败", zap.String("period", periodID), zap.Error(err))
		return "", err
	}

	if err := tx.Commit().Error; err != nil {
		s.logger.Error("提交事务失败", zap.Error(err))
		return "", err
	}

	// 同步本地档案镜像；失败不影响云端结果，下次同步会纠正
	profile, err := s.repo.Local.Profile(ctx, uid)
	if err == nil {
		profile.ActivePeriodID = periodID
		if err := s.repo.Local.SaveProfile(ctx, uid, profile); err != nil {
			s.logger.Warn("更新本地档案镜像失败", zap.Error(err))
		}
	}

	return periodID, nil
}

// archiveWorkingSet 把本地工作集中属于旧周期的记录合并写入云端，
// 然后清空本地课程记录并把科目计数归零。历史周期的记录水合时
// 已有云端副本，直接随清空丢弃
func (s *periodService) archiveWorkingSet(ctx context.Context, uid, periodID string) error {
	records, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		return err
	}

	if len(records) > 0 {
		nowMillis := s.now().UnixMilli()
		if _, err := pushRecordsByDate(ctx, s.repo.Cloud, recordsInPeriod(records, periodID), uid, periodID, nowMillis); err != nil {
			return err
		}
	}

	if err := s.repo.Local.SaveLectures(ctx, uid, nil); err != nil {
		return err
	}

	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		return err
	}
	if len(subjects) > 0 {
		RefreshSubjectCounters(subjects, nil, "")
		if err := s.repo.Local.SaveSubjects(ctx, uid, subjects); err != nil {
			return err
		}
	}
	return nil
}

// ────────────────────── ResetPeriod ──────────────────────

func (s *periodService) ResetPeriod(ctx context.Context, uid string) (string, error) {
	return s.StartNewPeriod(ctx, uid, "")
}

// ────────────────────── List ──────────────────────

func (s *periodService) List(ctx context.Context, uid string) ([]model.Period, error) {
	periods, err := s.repo.Period.List(ctx, uid)
	if err != nil {
		s.logger.Error("列出周期失败", zap.Error(err))
		return nil, err
	}
	return periods, nil
}
