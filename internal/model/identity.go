package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ── 课程记录标识方案 ──
//
// ID 是 (date, subjectId, lectureIndex) 的纯函数：任意设备独立生成的
// 同一课程槽位 ID 必须逐字节一致，合并才能在无中心协调的前提下幂等。
// 科目标识先做空白归一化，避免格式差异造成 ID 漂移。

// NormalizeSubjectID 归一化科目标识：去首尾空白并将连续空白折叠为单个下划线
func NormalizeSubjectID(subjectID string) string {
	fields := strings.Fields(subjectID)
	return strings.Join(fields, "_")
}

// MakeLectureID 推导课程记录的确定性 ID
func MakeLectureID(date, subjectID string, lectureIndex int) string {
	return fmt.Sprintf("%s_%s_%d", date, NormalizeSubjectID(subjectID), lectureIndex)
}

// NewFallbackID 为缺少结构化字段的旧数据生成随机 ID。
// 此类记录无法与后续确定性写入去重，是已知的重复来源。
func NewFallbackID() string {
	return "legacy_" + uuid.New().String()
}
