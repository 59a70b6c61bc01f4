package dto

// ── 科目模块 DTO ──

// CreateSubjectRequest 创建科目请求
type CreateSubjectRequest struct {
	Name             string   `json:"name"              binding:"required,min=1,max=100"`
	Color            string   `json:"color"             binding:"omitempty,max=20"`
	TargetPercentage *float64 `json:"target_percentage" binding:"omitempty,gt=0,lte=100"` // 缺省 75
}

// UpdateSubjectRequest 更新科目请求
type UpdateSubjectRequest struct {
	Name             *string  `json:"name"              binding:"omitempty,min=1,max=100"`
	Color            *string  `json:"color"             binding:"omitempty,max=20"`
	TargetPercentage *float64 `json:"target_percentage" binding:"omitempty,gt=0,lte=100"`
}

// SubjectResponse 科目信息响应
type SubjectResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Color            string  `json:"color"`
	TargetPercentage float64 `json:"target_percentage"`
	TotalClasses     int     `json:"total_classes"`
	AttendedClasses  int     `json:"attended_classes"`
}
