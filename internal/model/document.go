package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ── 云端出勤文档与版本化载荷 ──

// 文档载荷的模式版本（带标签联合，读取时升级，绝不原地改写旧数据）
const (
	SchemaLegacyAggregate = 1 // 旧版：按科目聚合计数 {subjectId, lectures, attended}
	SchemaLectureRecords  = 2 // 当前：逐节课记录数组
)

// AttendanceDocument 周期/日期层级的云端出勤文档 — 对应 attendance_documents
// 概念路径 users/{uid}/periods/{periodId}/attendance/{date}；
// 周期/日期层级保证"重置"只是指针切换而非数据搬迁
type AttendanceDocument struct {
	UID           string      `gorm:"type:uuid;primaryKey"        json:"uid"`
	PeriodID      string      `gorm:"type:varchar(64);primaryKey" json:"period_id"`
	Date          string      `gorm:"type:varchar(10);primaryKey" json:"date"`
	SchemaVersion int         `gorm:"not null;default:2"          json:"schema_version"`
	Payload       JSONPayload `gorm:"type:jsonb;not null"         json:"payload"`
	UpdatedAt     time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (AttendanceDocument) TableName() string { return "attendance_documents" }

// LegacyAggregate 旧版文档中的按科目聚合条目
type LegacyAggregate struct {
	SubjectID string `json:"subjectId"`
	Lectures  int    `json:"lectures"`
	Attended  int    `json:"attended"`
}

// DecodeRecords 按模式版本解码文档载荷为课程记录集（读取时升级）。
// 旧版聚合条目通过确定性标识方案展开为逐节课记录：
// 序号 ≤ attended 的记为 present，其余记为 absent。相同输入任意次
// 展开产生相同 ID，使迁移过程可重复执行而不产生重复。
func (d *AttendanceDocument) DecodeRecords() ([]LectureRecord, error) {
	switch d.SchemaVersion {
	case SchemaLegacyAggregate:
		var aggregates []LegacyAggregate
		if err := json.Unmarshal([]byte(d.Payload), &aggregates); err != nil {
			return nil, fmt.Errorf("解析旧版聚合载荷失败: %w", err)
		}
		return ExpandLegacyAggregates(d.Date, aggregates, d.UpdatedAt.UnixMilli()), nil

	case SchemaLectureRecords:
		var records []LectureRecord
		if err := json.Unmarshal([]byte(d.Payload), &records); err != nil {
			return nil, fmt.Errorf("解析课程记录载荷失败: %w", err)
		}
		return records, nil

	default:
		return nil, fmt.Errorf("未知的文档模式版本: %d", d.SchemaVersion)
	}
}

// EncodeRecords 将课程记录集编码为当前版本载荷
func EncodeRecords(records []LectureRecord) (JSONPayload, error) {
	if records == nil {
		records = []LectureRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("编码课程记录载荷失败: %w", err)
	}
	return JSONPayload(data), nil
}

// ExpandLegacyAggregates 将聚合计数展开为逐节课记录
func ExpandLegacyAggregates(date string, aggregates []LegacyAggregate, timestamp int64) []LectureRecord {
	var records []LectureRecord
	for _, agg := range aggregates {
		for i := 1; i <= agg.Lectures; i++ {
			status := StatusAbsent
			if i <= agg.Attended {
				status = StatusPresent
			}
			records = append(records, LectureRecord{
				ID:           MakeLectureID(date, agg.SubjectID, i),
				SubjectID:    agg.SubjectID,
				Date:         date,
				LectureIndex: i,
				Status:       status,
				CreatedAt:    timestamp,
				UpdatedAt:    timestamp,
			})
		}
	}
	return records
}
