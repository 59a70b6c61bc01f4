package handler

import "classtrack/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Subject    *SubjectHandler
	Attendance *AttendanceHandler
	Stats      *StatsHandler
	Day        *DayHandler
	Period     *PeriodHandler
	Sync       *SyncHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Subject:    NewSubjectHandler(svc.Subject),
		Attendance: NewAttendanceHandler(svc.Attendance),
		Stats:      NewStatsHandler(svc.Stats),
		Day:        NewDayHandler(svc.Day),
		Period:     NewPeriodHandler(svc.Period),
		Sync:       NewSyncHandler(svc.Sync),
		Export:     NewExportHandler(svc.Export),
	}
}
