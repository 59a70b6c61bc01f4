package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"classtrack/backend/config"
	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
	pkgerrors "classtrack/backend/pkg/errors"
	pkgredis "classtrack/backend/pkg/redis"
)

// ── 同步模块业务错误 ──

var (
	// ErrSyncConflictDecision 登录时本地已有出勤数据：绝不自动覆盖，
	// 必须由调用方显式选择 upload / upload-clear-local / skip
	ErrSyncConflictDecision = errors.New("本地已有出勤数据，需要显式冲突决策")
	ErrInvalidDecision      = errors.New("无效的冲突决策")
)

// SyncService 本地↔云端对账协调器
//
// 状态机：未登录 → 登录无本地数据（水合）/ 登录有本地数据（等待决策）。
// 登出清空本地缓存，云端数据不动。所有云端写入都走合并引擎的
// 事务路径，绝不盲写覆盖。
type SyncService interface {
	OutboxEnqueuer

	// SyncNow 手动同步：先推送本地记录到活动周期，再拉取合并回本地
	SyncNow(ctx context.Context, uid string) (*dto.SyncResponse, error)
	// HandleSignIn 登录转换：无本地数据时从云端水合；
	// 有本地数据时返回 ErrSyncConflictDecision
	HandleSignIn(ctx context.Context, uid string) error
	// ResolveConflict 应用调用方的冲突决策
	ResolveConflict(ctx context.Context, uid, decision string) error
	// SignOut 登出转换：清空全部本地集合与活动周期指针
	SignOut(ctx context.Context, uid string) error
	// MigrateLegacy 一次性迁移旧版聚合文档为逐节课记录（可重复执行）
	MigrateLegacy(ctx context.Context, uid string) (int, error)
	// RunWorker 发件箱工作循环，随 ctx 取消退出
	RunWorker(ctx context.Context)
}

// outboxTask 发件箱任务载荷
type outboxTask struct {
	UID      string `json:"uid"`
	PeriodID string `json:"period_id"`
	Date     string `json:"date"`
}

type syncService struct {
	cfg       *config.SyncConfig
	repo      *repository.Repository
	periodSvc PeriodService
	rdb       *pkgredis.Client
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyncService 创建 SyncService 实例
// rdb 为 nil 时发件箱不可用，同步调度降级为仅记日志
func NewSyncService(cfg *config.SyncConfig, repo *repository.Repository, periodSvc PeriodService, rdb *pkgredis.Client, logger *zap.Logger) SyncService {
	return &syncService{
		cfg:       cfg,
		repo:      repo,
		periodSvc: periodSvc,
		rdb:       rdb,
		logger:    logger,
		now:       time.Now,
	}
}

// ────────────────────── EnqueueSync ──────────────────────

func (s *syncService) EnqueueSync(ctx context.Context, uid, periodID, date string) {
	if s.rdb == nil {
		s.logger.Warn("发件箱不可用，跳过同步调度",
			zap.String("uid", uid), zap.String("date", date))
		return
	}

	payload, err := json.Marshal(outboxTask{UID: uid, PeriodID: periodID, Date: date})
	if err != nil {
		s.logger.Error("序列化同步任务失败", zap.Error(err))
		return
	}
	if err := s.rdb.OutboxEnqueue(ctx, payload); err != nil {
		// 入队失败不影响已成功的本地写入；任务丢失由下次手动同步补偿
		s.logger.Warn("同步任务入队失败", zap.String("uid", uid), zap.Error(err))
	}
}

// ────────────────────── SyncNow ──────────────────────

func (s *syncService) SyncNow(ctx context.Context, uid string) (*dto.SyncResponse, error) {
	periodID, err := s.periodSvc.ActivePeriod(ctx, uid)
	if err != nil {
		return nil, err
	}

	pushed, err := s.pushAll(ctx, uid, periodID)
	if err != nil {
		return nil, err
	}

	total, err := s.pull(ctx, uid, periodID)
	if err != nil {
		return nil, err
	}

	// 同步成功后刷新本地档案镜像
	profile, err := s.repo.Local.Profile(ctx, uid)
	if err == nil {
		profile.ActivePeriodID = periodID
		if err := s.repo.Local.SaveProfile(ctx, uid, profile); err != nil {
			s.logger.Warn("更新本地档案镜像失败", zap.Error(err))
		}
	}

	return &dto.SyncResponse{
		PushedDates:   pushed,
		PulledRecords: total,
		ActivePeriod:  periodID,
	}, nil
}

// ────────────────────── HandleSignIn ──────────────────────

func (s *syncService) HandleSignIn(ctx context.Context, uid string) error {
	records, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地课程记录失败", zap.Error(err))
		return err
	}
	if len(records) > 0 {
		return ErrSyncConflictDecision
	}
	return s.hydrate(ctx, uid)
}

// hydrate 以云端全部周期的记录集填充空的本地状态
func (s *syncService) hydrate(ctx context.Context, uid string) error {
	docs, err := s.repo.Cloud.ListAllDocuments(ctx, uid)
	if err != nil {
		s.logger.Error("拉取云端文档失败", zap.Error(err))
		return fmt.Errorf("%w: %v", pkgerrors.ErrTransport, err)
	}

	merged := []model.LectureRecord{}
	nowMillis := s.now().UnixMilli()
	for i := range docs {
		records, err := docs[i].DecodeRecords()
		if err != nil {
			s.logger.Warn("解码云端文档失败，跳过",
				zap.String("period", docs[i].PeriodID),
				zap.String("date", docs[i].Date),
				zap.Error(err))
			continue
		}
		merged = MergeRecords(merged, records, nowMillis)
	}

	if err := s.repo.Local.SaveLectures(ctx, uid, merged); err != nil {
		s.logger.Error("写入本地课程记录失败", zap.Error(err))
		return err
	}

	// 镜像云端活动周期指针
	periodID, err := s.periodSvc.ActivePeriod(ctx, uid)
	if err != nil {
		return err
	}
	profile, err := s.repo.Local.Profile(ctx, uid)
	if err != nil {
		return err
	}
	profile.ActivePeriodID = periodID
	if err := s.repo.Local.SaveProfile(ctx, uid, profile); err != nil {
		return err
	}

	s.refreshCounters(ctx, uid, recordsInPeriod(merged, periodID))

	s.logger.Info("云端水合完成", zap.String("uid", uid), zap.Int("records", len(merged)))
	return nil
}

// ────────────────────── ResolveConflict ──────────────────────

func (s *syncService) ResolveConflict(ctx context.Context, uid, decision string) error {
	switch decision {
	case dto.DecisionUpload:
		periodID, err := s.periodSvc.ActivePeriod(ctx, uid)
		if err != nil {
			return err
		}
		if err := s.pushAllHomed(ctx, uid, periodID); err != nil {
			return err
		}
		_, err = s.pull(ctx, uid, periodID)
		return err

	case dto.DecisionUploadClearLocal:
		periodID, err := s.periodSvc.ActivePeriod(ctx, uid)
		if err != nil {
			return err
		}
		if err := s.pushAllHomed(ctx, uid, periodID); err != nil {
			return err
		}
		if err := s.repo.Local.ClearAll(ctx, uid); err != nil {
			return err
		}
		return s.hydrate(ctx, uid)

	case dto.DecisionSkip:
		return nil

	default:
		return ErrInvalidDecision
	}
}

// ────────────────────── SignOut ──────────────────────

func (s *syncService) SignOut(ctx context.Context, uid string) error {
	if err := s.repo.Local.ClearAll(ctx, uid); err != nil {
		s.logger.Error("清空本地缓存失败", zap.Error(err))
		return err
	}
	s.logger.Info("本地缓存已清空", zap.String("uid", uid))
	return nil
}

// ────────────────────── MigrateLegacy ──────────────────────

func (s *syncService) MigrateLegacy(ctx context.Context, uid string) (int, error) {
	docs, err := s.repo.Cloud.ListLegacyDocuments(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", pkgerrors.ErrTransport, err)
	}

	nowMillis := s.now().UnixMilli()
	migrated := 0
	for i := range docs {
		doc := docs[i]
		// 事务内完成读取升级（聚合展开为逐节课记录）并以当前版本写回；
		// 确定性 ID 保证重复执行不产生重复记录
		err := s.repo.Cloud.RunTransaction(ctx, doc.UID, doc.PeriodID, doc.Date,
			func(current []model.LectureRecord) ([]model.LectureRecord, error) {
				return MergeRecords(current, nil, nowMillis), nil
			})
		if err != nil {
			s.logger.Error("迁移旧版文档失败",
				zap.String("period", doc.PeriodID),
				zap.String("date", doc.Date),
				zap.Error(err))
			return migrated, fmt.Errorf("%w: %v", pkgerrors.ErrTransport, err)
		}
		migrated++
	}

	if migrated > 0 {
		s.logger.Info("旧版文档迁移完成", zap.String("uid", uid), zap.Int("documents", migrated))
	}
	return migrated, nil
}

// ────────────────────── RunWorker ──────────────────────

func (s *syncService) RunWorker(ctx context.Context) {
	if s.rdb == nil {
		s.logger.Warn("发件箱不可用，同步工作循环未启动")
		return
	}

	s.logger.Info("同步工作循环已启动")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同步工作循环退出")
			return
		default:
		}

		payload, err := s.rdb.OutboxDequeue(ctx, s.cfg.OutboxPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("发件箱弹出失败", zap.Error(err))
			time.Sleep(s.cfg.RetryBackoff)
			continue
		}
		if payload == nil {
			continue // 超时无任务
		}

		var task outboxTask
		if err := json.Unmarshal(payload, &task); err != nil {
			s.logger.Error("同步任务载荷损坏，丢弃", zap.Error(err))
			continue
		}

		if err := s.pushDate(ctx, task.UID, task.PeriodID, task.Date); err != nil {
			s.logger.Warn("云端合并写失败，任务重新入队",
				zap.String("uid", task.UID),
				zap.String("date", task.Date),
				zap.Error(err))
			time.Sleep(s.cfg.RetryBackoff)
			if err := s.rdb.OutboxEnqueue(ctx, payload); err != nil {
				s.logger.Error("同步任务重新入队失败", zap.Error(err))
			}
		}
	}
}

// ── 内部辅助方法 ──

// pushDate 将本地某天的记录通过合并引擎写入对应周期文档
func (s *syncService) pushDate(ctx context.Context, uid, periodID, date string) error {
	local, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		return err
	}
	incoming := make([]model.LectureRecord, 0)
	for _, rec := range local {
		if rec.Date == date {
			incoming = append(incoming, rec)
		}
	}

	nowMillis := s.now().UnixMilli()
	err = s.repo.Cloud.RunTransaction(ctx, uid, periodID, date,
		func(current []model.LectureRecord) ([]model.LectureRecord, error) {
			return MergeRecords(current, incoming, nowMillis), nil
		})
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrTransport, err)
	}
	return nil
}

// pushAll 推送本地记录中属于指定周期的日期，返回推送的文档数。
// 水合后本地工作集含历史周期的记录，推送必须按周期过滤，
// 否则历史记录会被改写进当前周期的文档
func (s *syncService) pushAll(ctx context.Context, uid, periodID string) (int, error) {
	local, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		return 0, err
	}
	return pushRecordsByDate(ctx, s.repo.Cloud, recordsInPeriod(local, periodID), uid, periodID, s.now().UnixMilli())
}

// pushAllHomed 将本地全部记录推送到各自的归属周期。登录前匿名积累的
// 记录可能跨越多个月份，不能全部塞进活动周期：年月形式的活动周期下
// 按记录日期所在月份归属，自定义周期下全部落进活动周期
func (s *syncService) pushAllHomed(ctx context.Context, uid, activePeriod string) error {
	local, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		return err
	}

	nowMillis := s.now().UnixMilli()
	if !periodInMonthForm(activePeriod) {
		_, err := pushRecordsByDate(ctx, s.repo.Cloud, local, uid, activePeriod, nowMillis)
		return err
	}

	byPeriod := make(map[string][]model.LectureRecord)
	for _, rec := range local {
		period := activePeriod
		if len(rec.Date) >= 7 {
			period = rec.Date[:7]
		}
		byPeriod[period] = append(byPeriod[period], rec)
	}
	for period, records := range byPeriod {
		if _, err := pushRecordsByDate(ctx, s.repo.Cloud, records, uid, period, nowMillis); err != nil {
			return err
		}
	}
	return nil
}

// periodInMonthForm 报告周期标识是否为默认的 UTC 年月形式
func periodInMonthForm(periodID string) bool {
	_, err := time.Parse("2006-01", periodID)
	return err == nil
}

// recordsInPeriod 过滤属于指定周期的记录。年月周期按日期前缀归属；
// 自定义周期没有日期边界，记录落点完全由活动指针决定，不过滤
func recordsInPeriod(records []model.LectureRecord, periodID string) []model.LectureRecord {
	if !periodInMonthForm(periodID) {
		return records
	}
	filtered := make([]model.LectureRecord, 0, len(records))
	for _, rec := range records {
		if strings.HasPrefix(rec.Date, periodID+"-") {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// pushRecordsByDate 将记录集按日期分组，逐文档走合并引擎写入指定周期
func pushRecordsByDate(ctx context.Context, cloud repository.CloudRepository, records []model.LectureRecord, uid, periodID string, nowMillis int64) (int, error) {
	byDate := make(map[string][]model.LectureRecord)
	for _, rec := range records {
		byDate[rec.Date] = append(byDate[rec.Date], rec)
	}

	for date, incoming := range byDate {
		err := cloud.RunTransaction(ctx, uid, periodID, date,
			func(current []model.LectureRecord) ([]model.LectureRecord, error) {
				return MergeRecords(current, incoming, nowMillis), nil
			})
		if err != nil {
			return 0, fmt.Errorf("%w: %v", pkgerrors.ErrTransport, err)
		}
	}
	return len(byDate), nil
}

// pull 拉取活动周期的全部文档并合并进本地记录集，返回合并后的总数
func (s *syncService) pull(ctx context.Context, uid, periodID string) (int, error) {
	docs, err := s.repo.Cloud.ListDocuments(ctx, uid, periodID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", pkgerrors.ErrTransport, err)
	}

	local, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		return 0, err
	}

	nowMillis := s.now().UnixMilli()
	for i := range docs {
		records, err := docs[i].DecodeRecords()
		if err != nil {
			s.logger.Warn("解码云端文档失败，跳过",
				zap.String("date", docs[i].Date), zap.Error(err))
			continue
		}
		local = MergeRecords(local, records, nowMillis)
	}

	if err := s.repo.Local.SaveLectures(ctx, uid, local); err != nil {
		return 0, err
	}

	s.refreshCounters(ctx, uid, recordsInPeriod(local, periodID))
	return len(local), nil
}

// refreshCounters 拉取合并后刷新全部科目缓存计数；
// 计数只反映当前周期的记录，历史周期不计入
func (s *syncService) refreshCounters(ctx context.Context, uid string, records []model.LectureRecord) {
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Warn("读取本地科目失败，跳过计数刷新", zap.Error(err))
		return
	}
	if len(subjects) == 0 {
		return
	}
	RefreshSubjectCounters(subjects, records, "")
	if err := s.repo.Local.SaveSubjects(ctx, uid, subjects); err != nil {
		s.logger.Warn("写入本地科目失败", zap.Error(err))
	}
}
