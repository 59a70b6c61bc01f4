package dto

// ── 统计模块 DTO ──

// StatsResponse 出勤统计响应
// subject_id 为空表示全科目汇总
type StatsResponse struct {
	SubjectID        string  `json:"subject_id,omitempty"`
	TargetPercentage float64 `json:"target_percentage"`
	Percentage       float64 `json:"percentage"`
	Attended         int     `json:"attended"`
	Total            int     `json:"total"`
	CanMiss          int     `json:"can_miss"`
	NeedToAttend     int     `json:"need_to_attend"`
	Status           string  `json:"status"` // safe | warning | danger
}
