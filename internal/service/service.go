package service

import (
	"go.uber.org/zap"

	"classtrack/backend/config"
	"classtrack/backend/internal/repository"
	"classtrack/backend/pkg/jwt"
	pkgredis "classtrack/backend/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Subject    SubjectService
	Attendance AttendanceService
	Stats      StatsService
	Day        DayService
	Period     PeriodService
	Sync       SyncService
	Export     ExportService
}

// NewService 创建 Service 聚合
//
// 构建顺序有依赖：Sync 依赖 Period；Attendance/Subject 以 Sync
// 作为 outbox 入队器；Auth 通过 Sync 驱动登录/登出状态转换。
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *pkgredis.Client,
	logger *zap.Logger,
) *Service {
	periodSvc := NewPeriodService(repo, logger)
	syncSvc := NewSyncService(&cfg.Sync, repo, periodSvc, rdb, logger)

	return &Service{
		Auth:       NewAuthService(cfg, repo, syncSvc, jwtMgr, rdb, logger),
		Subject:    NewSubjectService(repo, syncSvc, logger),
		Attendance: NewAttendanceService(repo, syncSvc, logger),
		Stats:      NewStatsService(repo, logger),
		Day:        NewDayService(repo, logger),
		Period:     periodSvc,
		Sync:       syncSvc,
		Export:     NewExportService(repo, periodSvc, logger),
	}
}
