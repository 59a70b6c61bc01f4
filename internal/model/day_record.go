package model

// DayRecord 日历日元数据 — 与课程记录相互独立
// 某一天可以是假期同时拥有任意数量的课程记录
type DayRecord struct {
	Date      string `json:"date"` // "2006-01-02"
	IsHoliday bool   `json:"isHoliday"`
	Notes     string `json:"notes"`
	UpdatedAt int64  `json:"updatedAt"` // Unix 毫秒
}
