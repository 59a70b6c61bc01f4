package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

// DayService 日记录业务接口
// 日记录与课程记录相互独立：某天可以是假期同时拥有任意数量的课程记录
type DayService interface {
	Upsert(ctx context.Context, uid, date string, req *dto.UpsertDayRequest) (*dto.DayResponse, error)
	Get(ctx context.Context, uid, date string) (*dto.DayResponse, error)
	List(ctx context.Context, uid string) ([]dto.DayResponse, error)
}

type dayService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewDayService 创建 DayService 实例
func NewDayService(repo *repository.Repository, logger *zap.Logger) DayService {
	return &dayService{repo: repo, logger: logger, now: time.Now}
}

func (s *dayService) Upsert(ctx context.Context, uid, date string, req *dto.UpsertDayRequest) (*dto.DayResponse, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDate
	}

	days, err := s.repo.Local.Days(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地日记录失败", zap.Error(err))
		return nil, err
	}

	day := model.DayRecord{
		Date:      date,
		IsHoliday: req.IsHoliday,
		Notes:     req.Notes,
		UpdatedAt: s.now().UnixMilli(),
	}
	days[date] = day

	if err := s.repo.Local.SaveDays(ctx, uid, days); err != nil {
		s.logger.Error("写入本地日记录失败", zap.Error(err))
		return nil, err
	}

	return toDayResponse(day), nil
}

func (s *dayService) Get(ctx context.Context, uid, date string) (*dto.DayResponse, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDate
	}

	days, err := s.repo.Local.Days(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地日记录失败", zap.Error(err))
		return nil, err
	}

	day, ok := days[date]
	if !ok {
		// 无记录的日期返回零值（非假期、无备注）
		day = model.DayRecord{Date: date}
	}
	return toDayResponse(day), nil
}

func (s *dayService) List(ctx context.Context, uid string) ([]dto.DayResponse, error) {
	days, err := s.repo.Local.Days(ctx, uid)
	if err != nil {
		s.logger.Error("读取本地日记录失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.DayResponse, 0, len(days))
	for _, day := range days {
		result = append(result, *toDayResponse(day))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func toDayResponse(day model.DayRecord) *dto.DayResponse {
	return &dto.DayResponse{
		Date:      day.Date,
		IsHoliday: day.IsHoliday,
		Notes:     day.Notes,
	}
}
