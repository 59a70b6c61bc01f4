package dto

// ── 周期模块 DTO ──

// StartPeriodRequest 开启新周期请求
type StartPeriodRequest struct {
	PeriodID string `json:"period_id" binding:"omitempty,max=64"` // 缺省取当前 UTC 年月
}

// PeriodResponse 周期信息响应
type PeriodResponse struct {
	PeriodID string `json:"period_id"`
	Active   bool   `json:"active"`
}
