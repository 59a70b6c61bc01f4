package dto

import "classtrack/backend/internal/model"

// ── 快照（备份）模块 DTO ──

// Snapshot 本地工作集的完整快照
// importSnapshot(exportSnapshot()) 必须还原出逐字段相同的课程记录集
type Snapshot struct {
	Version      int                        `json:"version"`
	ExportedAt   int64                      `json:"exported_at"` // Unix 毫秒
	ActivePeriod string                     `json:"active_period"`
	Subjects     []model.Subject            `json:"subjects"`
	Lectures     []model.LectureRecord      `json:"lectures"`
	Days         map[string]model.DayRecord `json:"days"`
}
