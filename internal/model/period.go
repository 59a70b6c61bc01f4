package model

import "time"

// Period 出勤周期 — 对应 periods
// 只增不删的时间分区（默认按自然月命名，如 "2025-10"）；
// 重置只是新建周期并移动档案的活动指针，历史周期数据保持不变
type Period struct {
	UID       string    `gorm:"type:uuid;primaryKey"       json:"uid"`
	PeriodID  string    `gorm:"type:varchar(64);primaryKey" json:"period_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (Period) TableName() string { return "periods" }

// Profile 用户档案 — 对应 profiles，跟踪活动周期指针
type Profile struct {
	UID            string    `gorm:"type:uuid;primaryKey"   json:"uid"`
	ActivePeriodID string    `gorm:"type:varchar(64);not null;default:''" json:"active_period_id"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"   json:"updated_at"`
}

// TableName 指定表名
func (Profile) TableName() string { return "profiles" }

// LocalProfile 本地工作集中的档案镜像（active-profile 命名空间的 Blob 内容）
type LocalProfile struct {
	ActivePeriodID string `json:"activePeriodId"`
	DeviceID       string `json:"deviceId,omitempty"`
}
