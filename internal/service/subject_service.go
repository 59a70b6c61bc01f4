package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

// ── 科目模块业务错误 ──

var ErrSubjectNameTaken = errors.New("同名科目已存在")

// SubjectService 科目业务接口
type SubjectService interface {
	Create(ctx context.Context, uid string, req *dto.CreateSubjectRequest) (*dto.SubjectResponse, error)
	List(ctx context.Context, uid string) ([]dto.SubjectResponse, error)
	Update(ctx context.Context, uid, subjectID string, req *dto.UpdateSubjectRequest) (*dto.SubjectResponse, error)
	// Delete 删除科目并级联删除其全部课程记录
	Delete(ctx context.Context, uid, subjectID string) error
}

type subjectService struct {
	repo   *repository.Repository
	outbox OutboxEnqueuer
	logger *zap.Logger
	now    func() time.Time
}

// NewSubjectService 创建 SubjectService 实例
func NewSubjectService(repo *repository.Repository, outbox OutboxEnqueuer, logger *zap.Logger) SubjectService {
	return &subjectService{repo: repo, outbox: outbox, logger: logger, now: time.Now}
}

// ────────────────────── Create ──────────────────────

func (s *subjectService) Create(ctx context.Context, uid string, req *dto.CreateSubjectRequest) (*dto.SubjectResponse, error) {
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return nil, err
	}

	for _, sub := range subjects {
		if sub.Name == req.Name {
			return nil, ErrSubjectNameTaken
		}
	}

	target := model.DefaultTargetPercentage
	if req.TargetPercentage != nil {
		target = *req.TargetPercentage
	}

	nowMillis := s.now().UnixMilli()
	subject := model.Subject{
		ID:               uuid.New().String(),
		Name:             req.Name,
		Color:            req.Color,
		TargetPercentage: target,
		CreatedAt:        nowMillis,
		UpdatedAt:        nowMillis,
	}
	subjects = append(subjects, subject)

	if err := s.repo.Local.SaveSubjects(ctx, uid, subjects); err != nil {
		s.logger.Error("写入本地科目失败", zap.Error(err))
		return nil, err
	}

	return toSubjectResponse(&subject), nil
}

// ────────────────────── List ──────────────────────

func (s *subjectService) List(ctx context.Context, uid string) ([]dto.SubjectResponse, error) {
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.SubjectResponse, 0, len(subjects))
	for i := range subjects {
		result = append(result, *toSubjectResponse(&subjects[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *subjectService) Update(ctx context.Context, uid, subjectID string, req *dto.UpdateSubjectRequest) (*dto.SubjectResponse, error) {
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

	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.Color != nil {
		subject.Color = *req.Color
	}
	if req.TargetPercentage != nil {
		subject.TargetPercentage = *req.TargetPercentage
	}
	subject.UpdatedAt = s.now().UnixMilli()

	if err := s.repo.Local.SaveSubjects(ctx, uid, subjects); err != nil {
		s.logger.Error("写入本地科目失败", zap.Error(err))
		return nil, err
	}

	return toSubjectResponse(subject), nil
}

// ────────────────────── Delete ──────────────────────

func (s *subjectService) Delete(ctx context.Context, uid, subjectID string) error {
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return err
	}

	found := false
	remaining := make([]model.Subject, 0, len(subjects))
	for _, sub := range subjects {
		if sub.ID == subjectID {
			found = true
			continue
		}
		remaining = append(remaining, sub)
	}
	if !found {
		return ErrSubjectNotFound
	}

	// 级联删除该科目的全部课程记录
	records, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地课程记录失败", zap.Error(err))
		return err
	}

	touchedDates := make(map[string]struct{})
	kept := make([]model.LectureRecord, 0, len(records))
	for _, rec := range records {
		if rec.SubjectID == subjectID {
			touchedDates[rec.Date] = struct{}{}
			continue
		}
		kept = append(kept, rec)
	}

	if err := s.repo.Local.SaveLectures(ctx, uid, kept); err != nil {
		s.logger.Error("写入本地课程记录失败", zap.Error(err))
		return err
	}
	if err := s.repo.Local.SaveSubjects(ctx, uid, remaining); err != nil {
		s.logger.Error("写入本地科目失败", zap.Error(err))
		return err
	}

	// 受影响日期调度云端同步
	profile, err := s.repo.Local.Profile(ctx, uid)
	if err == nil {
		periodID := profile.ActivePeriodID
		if periodID == "" {
			periodID = CurrentPeriodID(s.now())
		}
		for date := range touchedDates {
			s.outbox.EnqueueSync(ctx, uid, periodID, date)
		}
	}

	return nil
}

// ── 内部辅助方法 ──

func toSubjectResponse(subject *model.Subject) *dto.SubjectResponse {
	return &dto.SubjectResponse{
		ID:               subject.ID,
		Name:             subject.Name,
		Color:            subject.Color,
		TargetPercentage: subject.TargetPercentage,
		TotalClasses:     subject.TotalClasses,
		AttendedClasses:  subject.AttendedClasses,
	}
}
