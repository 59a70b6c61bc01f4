package dto

// ── 日记录模块 DTO ──

// UpsertDayRequest 设置日记录请求
type UpsertDayRequest struct {
	IsHoliday bool   `json:"is_holiday"`
	Notes     string `json:"notes" binding:"max=500"`
}

// DayResponse 日记录响应
type DayResponse struct {
	Date      string `json:"date"`
	IsHoliday bool   `json:"is_holiday"`
	Notes     string `json:"notes"`
}
