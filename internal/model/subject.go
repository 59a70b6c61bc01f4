package model

// DefaultTargetPercentage 科目出勤率默认目标
const DefaultTargetPercentage = 75.0

// Subject 被跟踪的科目 — 存储于本地工作集
// TotalClasses / AttendedClasses 是物化视图：永远等于按课程记录集
// 重新推导的计数，每次记录集变更后同步刷新，绝不直接修改
type Subject struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Color            string  `json:"color"`
	TargetPercentage float64 `json:"targetPercentage"`
	TotalClasses     int     `json:"totalClasses"`    // 派生缓存：status != no-lecture 的记录数
	AttendedClasses  int     `json:"attendedClasses"` // 派生缓存：status = present 的记录数
	CreatedAt        int64   `json:"createdAt"`       // Unix 毫秒
	UpdatedAt        int64   `json:"updatedAt"`
}
