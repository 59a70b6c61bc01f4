package model

import "fmt"

// ── 出勤状态枚举 ──

const (
	StatusPresent   = "present"
	StatusAbsent    = "absent"
	StatusNoLecture = "no-lecture" // 软删除墓碑：从统计总数中排除，但保留槽位
)

// ValidStatus 校验出勤状态取值
func ValidStatus(s string) bool {
	return s == StatusPresent || s == StatusAbsent || s == StatusNoLecture
}

// LectureRecord 单条课程出勤记录 — 本地与云端共用的交换结构
// 某一科目在某一天的第 N 节课（lectureIndex 从 1 开始）
type LectureRecord struct {
	ID           string `json:"id"`
	SubjectID    string `json:"subjectId"`
	Date         string `json:"date"` // "2006-01-02"，无时间部分
	LectureIndex int    `json:"lectureIndex"`
	Status       string `json:"status"`              // present | absent | no-lecture
	CreatedAt    int64  `json:"createdAt"`           // Unix 毫秒
	UpdatedAt    int64  `json:"updatedAt"`           // Unix 毫秒，客户端逻辑时钟，冲突裁决依据
	DeviceID     string `json:"deviceId,omitempty"`  // 来源设备，仅作信息记录，绝不参与裁决
}

// LectureKey 返回 (subjectId, lectureIndex) 分组键 — 仅用于兜底收敛
func (r *LectureRecord) LectureKey() string {
	return fmt.Sprintf("%s#%d", NormalizeSubjectID(r.SubjectID), r.LectureIndex)
}

// HasDeterministicIdentity 判断记录是否具备推导确定性 ID 的全部字段
func (r *LectureRecord) HasDeterministicIdentity() bool {
	return r.SubjectID != "" && r.LectureIndex >= 1 && r.Date != ""
}

// CountsTowardTotal 是否计入总课时（墓碑不计入）
func (r *LectureRecord) CountsTowardTotal() bool {
	return r.Status != StatusNoLecture
}
