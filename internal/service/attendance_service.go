package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

// ── 出勤模块业务错误 ──

var (
	ErrInvalidDate         = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrInvalidStatus       = errors.New("出勤状态无效")
	ErrInvalidLectureIndex = errors.New("节次必须连续，不能跳过空槽位")
	ErrSubjectNotFound     = errors.New("科目不存在")
)

// OutboxEnqueuer 同步发件箱入队接口
// 本地写入成功后调度（但绝不阻塞等待）云端同步；入队失败只记日志，
// 不影响本地写入的结果
type OutboxEnqueuer interface {
	EnqueueSync(ctx context.Context, uid, periodID, date string)
}

// AttendanceService 出勤记录业务接口
type AttendanceService interface {
	// Mark 标记单节课出勤；同一槽位重复标记为状态覆盖（同一 ID）
	Mark(ctx context.Context, uid string, req *dto.MarkAttendanceRequest) (*model.LectureRecord, error)
	// MarkAllForDate 对某天的全部科目统一标记；无记录的科目创建第 1 节
	MarkAllForDate(ctx context.Context, uid string, req *dto.MarkAllRequest) ([]model.LectureRecord, error)
	// Delete 删除指定槽位并重排该科目当天的后续节次；槽位不存在时为 no-op
	Delete(ctx context.Context, uid string, req *dto.DeleteLectureRequest) error
	ListByDate(ctx context.Context, uid, date string) ([]model.LectureRecord, error)
	ListBySubject(ctx context.Context, uid, subjectID string) ([]model.LectureRecord, error)
}

type attendanceService struct {
	repo   *repository.Repository
	outbox OutboxEnqueuer
	logger *zap.Logger
	now    func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, outbox OutboxEnqueuer, logger *zap.Logger) AttendanceService {
	return &attendanceService{repo: repo, outbox: outbox, logger: logger, now: time.Now}
}

// ────────────────────── Mark ──────────────────────

func (s *attendanceService) Mark(ctx context.Context, uid string, req *dto.MarkAttendanceRequest) (*model.LectureRecord, error) {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, ErrInvalidDate
	}
	if !model.ValidStatus(req.Status) {
		return nil, ErrInvalidStatus
	}

	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return nil, err
	}
	if findSubject(subjects, req.SubjectID) == nil {
		return nil, ErrSubjectNotFound
	}

	records, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地课程记录失败", zap.Error(err))
		return nil, err
	}

	// 确定节次：显式指定或追加为当天该科目的下一节。
	// 显式节次只允许覆盖已有槽位或追加下一节，越过空槽位会留下
	// 永久性的编号空洞
	next := nextLectureIndex(records, req.SubjectID, req.Date)
	index := next
	if req.LectureIndex != nil {
		if *req.LectureIndex > next {
			return nil, ErrInvalidLectureIndex
		}
		index = *req.LectureIndex
	}

	nowMillis := s.now().UnixMilli()
	updatedAt := nowMillis
	if req.UpdatedAt != nil {
		updatedAt = *req.UpdatedAt
	}

	record := model.LectureRecord{
		ID:           model.MakeLectureID(req.Date, req.SubjectID, index),
		SubjectID:    req.SubjectID,
		Date:         req.Date,
		LectureIndex: index,
		Status:       req.Status,
		CreatedAt:    nowMillis,
		UpdatedAt:    updatedAt,
		DeviceID:     req.DeviceID,
	}

	records = upsertRecord(records, record)

	if err := s.commit(ctx, uid, records, subjects, req.SubjectID); err != nil {
		return nil, err
	}

	s.scheduleSync(ctx, uid, req.Date)
	return &record, nil
}

// ────────────────────── MarkAllForDate ──────────────────────

func (s *attendanceService) MarkAllForDate(ctx context.Context, uid string, req *dto.MarkAllRequest) ([]model.LectureRecord, error) {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, ErrInvalidDate
	}
	if !model.ValidStatus(req.Status) {
		return nil, ErrInvalidStatus
	}

	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return nil, err
	}

	records, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地课程记录失败", zap.Error(err))
		return nil, err
	}

	nowMillis := s.now().UnixMilli()
	updatedAt := nowMillis
	if req.UpdatedAt != nil {
		updatedAt = *req.UpdatedAt
	}

	var touched []model.LectureRecord
	for _, subject := range subjects {
		existing := recordsFor(records, subject.ID, req.Date)
		if len(existing) == 0 {
			// 无记录的科目创建当天第 1 节
			rec := model.LectureRecord{
				ID:           model.MakeLectureID(req.Date, subject.ID, 1),
				SubjectID:    subject.ID,
				Date:         req.Date,
				LectureIndex: 1,
				Status:       req.Status,
				CreatedAt:    nowMillis,
				UpdatedAt:    updatedAt,
				DeviceID:     req.DeviceID,
			}
			records = upsertRecord(records, rec)
			touched = append(touched, rec)
			continue
		}
		for _, rec := range existing {
			rec.Status = req.Status
			rec.UpdatedAt = updatedAt
			rec.DeviceID = req.DeviceID
			records = upsertRecord(records, rec)
			touched = append(touched, rec)
		}
	}

	// 全部科目受影响，计数全量刷新
	if err := s.commit(ctx, uid, records, subjects, ""); err != nil {
		return nil, err
	}

	s.scheduleSync(ctx, uid, req.Date)
	return touched, nil
}

// ────────────────────── Delete ──────────────────────

func (s *attendanceService) Delete(ctx context.Context, uid string, req *dto.DeleteLectureRequest) error {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return ErrInvalidDate
	}

	records, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地课程记录失败", zap.Error(err))
		return err
	}

	id := model.MakeLectureID(req.Date, req.SubjectID, req.LectureIndex)
	found := false
	next := make([]model.LectureRecord, 0, len(records))
	for _, rec := range records {
		if rec.ID == id {
			found = true
			continue
		}
		next = append(next, rec)
	}
	if !found {
		return nil // 槽位不存在，no-op
	}

	// 重排该科目当天的后续节次，保持 lectureIndex 从 1 连续无洞
	nowMillis := s.now().UnixMilli()
	for i := range next {
		rec := &next[i]
		if rec.SubjectID != req.SubjectID || rec.Date != req.Date {
			continue
		}
		if rec.LectureIndex > req.LectureIndex {
			rec.LectureIndex--
			rec.ID = model.MakeLectureID(rec.Date, rec.SubjectID, rec.LectureIndex)
			rec.UpdatedAt = nowMillis
		}
	}

	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地科目失败", zap.Error(err))
		return err
	}

	if err := s.commit(ctx, uid, next, subjects, req.SubjectID); err != nil {
		return err
	}

	s.scheduleSync(ctx, uid, req.Date)
	return nil
}

// ────────────────────── 查询 ──────────────────────

func (s *attendanceService) ListByDate(ctx context.Context, uid, date string) ([]model.LectureRecord, error) {
	seq, err := s.repo.Local.QueryLectures(ctx, uid, func(r model.LectureRecord) bool {
		return r.Date == date
	})
	if err != nil {
		return nil, err
	}
	out := []model.LectureRecord{}
	for rec := range seq {
		out = append(out, rec)
	}
	return out, nil
}

func (s *attendanceService) ListBySubject(ctx context.Context, uid, subjectID string) ([]model.LectureRecord, error) {
	seq, err := s.repo.Local.QueryLectures(ctx, uid, func(r model.LectureRecord) bool {
		return r.SubjectID == subjectID
	})
	if err != nil {
		return nil, err
	}
	out := []model.LectureRecord{}
	for rec := range seq {
		out = append(out, rec)
	}
	return out, nil
}

// ── 内部辅助方法 ──

// commit 先落盘记录集，成功后刷新科目计数并落盘科目集。
// 记录写入失败时科目计数保持原状，两份数据不会出现半应用状态。
// subjectID 为空表示刷新全部科目的计数。
func (s *attendanceService) commit(ctx context.Context, uid string, records []model.LectureRecord, subjects []model.Subject, subjectID string) error {
	if err := s.repo.Local.SaveLectures(ctx, uid, records); err != nil {
		s.logger.Error("写入本地课程记录失败", zap.Error(err))
		return err
	}

	RefreshSubjectCounters(subjects, records, subjectID)

	if err := s.repo.Local.SaveSubjects(ctx, uid, subjects); err != nil {
		s.logger.Error("写入本地科目失败", zap.Error(err))
		return err
	}
	return nil
}

// scheduleSync 调度云端同步（fire-and-forget）
func (s *attendanceService) scheduleSync(ctx context.Context, uid, date string) {
	profile, err := s.repo.Local.Profile(ctx, uid)
	if err != nil {
		s.logger.Warn("读取本地档案失败，跳过同步调度", zap.Error(err))
		return
	}
	periodID := profile.ActivePeriodID
	if periodID == "" {
		periodID = CurrentPeriodID(s.now())
	}
	s.outbox.EnqueueSync(ctx, uid, periodID, date)
}

// RefreshSubjectCounters 按记录集全量重推导科目缓存计数。
// subjectID 为空时刷新全部科目。
func RefreshSubjectCounters(subjects []model.Subject, records []model.LectureRecord, subjectID string) {
	for i := range subjects {
		if subjectID != "" && subjects[i].ID != subjectID {
			continue
		}
		var attended, total int
		for _, rec := range records {
			if rec.SubjectID != subjects[i].ID || !rec.CountsTowardTotal() {
				continue
			}
			total++
			if rec.Status == model.StatusPresent {
				attended++
			}
		}
		subjects[i].TotalClasses = total
		subjects[i].AttendedClasses = attended
	}
}

// CurrentPeriodID 当前 UTC 年月，如 "2025-10"
func CurrentPeriodID(now time.Time) string {
	return now.UTC().Format("2006-01")
}

func findSubject(subjects []model.Subject, id string) *model.Subject {
	for i := range subjects {
		if subjects[i].ID == id {
			return &subjects[i]
		}
	}
	return nil
}

func recordsFor(records []model.LectureRecord, subjectID, date string) []model.LectureRecord {
	var out []model.LectureRecord
	for _, rec := range records {
		if rec.SubjectID == subjectID && rec.Date == date {
			out = append(out, rec)
		}
	}
	return out
}

func nextLectureIndex(records []model.LectureRecord, subjectID, date string) int {
	max := 0
	for _, rec := range records {
		if rec.SubjectID == subjectID && rec.Date == date && rec.LectureIndex > max {
			max = rec.LectureIndex
		}
	}
	return max + 1
}

func upsertRecord(records []model.LectureRecord, record model.LectureRecord) []model.LectureRecord {
	for i := range records {
		if records[i].ID == record.ID {
			// 同一槽位覆盖，保留首次创建时间
			record.CreatedAt = records[i].CreatedAt
			records[i] = record
			return records
		}
	}
	return append(records, record)
}
