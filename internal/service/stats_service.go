package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

// ── 出勤健康状态 ──

const (
	StatsSafe    = "safe"
	StatsWarning = "warning" // 低于目标但差距在 5 个百分点以内
	StatsDanger  = "danger"
)

// Stats 聚合统计结果
type Stats struct {
	Percentage   float64
	Attended     int
	Total        int
	CanMiss      int // 保持不低于目标的前提下还能缺席的课时数
	NeedToAttend int // 达到目标还需连续出勤的课时数（每节同时 +1 出勤与总数）
	Status       string
}

// ComputeStats 从记录集纯函数式推导统计值。
// total 不含 no-lecture 墓碑；total = 0 时出勤率定义为 0。
// 每次变更后都必须全量重推导，科目上的缓存计数只是 total/attended
// 的反范式镜像，绝不允许与全量重算产生漂移。
func ComputeStats(records []model.LectureRecord, targetPercentage float64) Stats {
	var attended, total int
	for _, rec := range records {
		if !rec.CountsTowardTotal() {
			continue
		}
		total++
		if rec.Status == model.StatusPresent {
			attended++
		}
	}

	var percentage float64
	if total > 0 {
		percentage = float64(attended) / float64(total) * 100
	}

	t := targetPercentage / 100

	var canMiss int
	if t > 0 {
		canMiss = int(math.Floor((float64(attended) - t*float64(total)) / t))
		if canMiss < 0 {
			canMiss = 0
		}
	}

	var needToAttend int
	if t < 1 {
		needToAttend = int(math.Ceil((t*float64(total) - float64(attended)) / (1 - t)))
		if needToAttend < 0 {
			needToAttend = 0
		}
	}
	// t >= 1 时任何缺席都无法通过补课挽回，needToAttend 保持 0

	status := StatsDanger
	switch {
	case percentage >= targetPercentage:
		status = StatsSafe
	case percentage >= targetPercentage-5:
		status = StatsWarning
	}

	return Stats{
		Percentage:   percentage,
		Attended:     attended,
		Total:        total,
		CanMiss:      canMiss,
		NeedToAttend: needToAttend,
		Status:       status,
	}
}

// ── StatsService ──

// StatsService 统计查询业务接口
type StatsService interface {
	// Overall 全科目汇总统计（目标取各科目标的最低值，无科目时取默认目标）
	Overall(ctx context.Context, uid string) (*dto.StatsResponse, error)
	// BySubject 单科目统计
	BySubject(ctx context.Context, uid, subjectID string) (*dto.StatsResponse, error)
}

type statsService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStatsService 创建 StatsService 实例
func NewStatsService(repo *repository.Repository, logger *zap.Logger) StatsService {
	return &statsService{repo: repo, logger: logger}
}

func (s *statsService) Overall(ctx context.Context, uid string) (*dto.StatsResponse, error) {
	records, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地课程记录失败", zap.Error(err))
		return nil, err
	}
	records, err = s.scopeToActivePeriod(ctx, uid, records)
	if err != nil {
		return nil, err
	}

	target := model.DefaultTargetPercentage
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return nil, err
	}
	for i, sub := range subjects {
		if i == 0 || sub.TargetPercentage < target {
			target = sub.TargetPercentage
		}
	}

	stats := ComputeStats(records, target)
	return toStatsResponse("", target, stats), nil
}

func (s *statsService) BySubject(ctx context.Context, uid, subjectID string) (*dto.StatsResponse, error) {
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return nil, err
	}

	var subject *model.Subject
	for i := range subjects {
		if subjects[i].ID == subjectID {
			subject = &subjects[i]
			break
		}
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}

	seq, err := s.repo.Local.QueryLectures(ctx, uid, func(r model.LectureRecord) bool {
		return r.SubjectID == subjectID
	})
	if err != nil {
		s.logger.Error("查询课程记录失败", zap.Error(err))
		return nil, err
	}

	var records []model.LectureRecord
	for rec := range seq {
		records = append(records, rec)
	}
	records, err = s.scopeToActivePeriod(ctx, uid, records)
	if err != nil {
		return nil, err
	}

	stats := ComputeStats(records, subject.TargetPercentage)
	return toStatsResponse(subjectID, subject.TargetPercentage, stats), nil
}

// scopeToActivePeriod 把统计视图限定在活动周期内。水合后本地工作集
// 含历史周期的记录，统计不应计入；未登录时档案镜像为空，本地数据
// 尚无周期概念，不过滤
func (s *statsService) scopeToActivePeriod(ctx context.Context, uid string, records []model.LectureRecord) ([]model.LectureRecord, error) {
	profile, err := s.repo.Local.Profile(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地档案失败", zap.Error(err))
		return nil, err
	}
	if profile.ActivePeriodID == "" {
		return records, nil
	}
	return recordsInPeriod(records, profile.ActivePeriodID), nil
}

func toStatsResponse(subjectID string, target float64, stats Stats) *dto.StatsResponse {
	return &dto.StatsResponse{
		SubjectID:        subjectID,
		TargetPercentage: target,
		Percentage:       stats.Percentage,
		Attended:         stats.Attended,
		Total:            stats.Total,
		CanMiss:          stats.CanMiss,
		NeedToAttend:     stats.NeedToAttend,
		Status:           stats.Status,
	}
}
