package dto

import "classtrack/backend/internal/model"

// ── 出勤模块 DTO ──
// 课程记录沿用 model.LectureRecord 的交换结构（本地/云端同形），
// 响应不做二次映射

// MarkAttendanceRequest 标记单节课出勤请求
type MarkAttendanceRequest struct {
	SubjectID    string `json:"subject_id"    binding:"required"`
	Date         string `json:"date"          binding:"required"` // "2025-10-31"
	Status       string `json:"status"        binding:"required,oneof=present absent no-lecture"`
	LectureIndex *int   `json:"lecture_index" binding:"omitempty,min=1"` // 缺省追加为当天该科目的下一节
	UpdatedAt    *int64 `json:"updated_at"`                              // 客户端逻辑时钟（Unix 毫秒），缺省取服务端当前时间
	DeviceID     string `json:"device_id"`
}

// MarkAllRequest 对某天全部科目统一标记请求
type MarkAllRequest struct {
	Date      string `json:"date"      binding:"required"`
	Status    string `json:"status"    binding:"required,oneof=present absent no-lecture"`
	UpdatedAt *int64 `json:"updated_at"`
	DeviceID  string `json:"device_id"`
}

// DeleteLectureRequest 删除指定课程槽位请求
type DeleteLectureRequest struct {
	SubjectID    string `json:"subject_id"    binding:"required"`
	Date         string `json:"date"          binding:"required"`
	LectureIndex int    `json:"lecture_index" binding:"required,min=1"`
}

// LectureListResponse 课程记录列表响应
type LectureListResponse struct {
	List []model.LectureRecord `json:"list"`
}
