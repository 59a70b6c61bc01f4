package service

import (
	"sort"

	"classtrack/backend/internal/model"
)

// ── 合并引擎 ──
//
// 以记录 ID 为键的 last-write-wins 合并。updatedAt 是客户端提供的
// 逻辑时钟而非向量时钟：设备间时钟偏差可能使并发编辑静默丢失一侧
// 写入。此行为与既有客户端约定一致，这里如实保留而非修正。

// MergeRecords 将 incoming 记录集合并到 existing 记录集，返回新的规范集。
// 幂等：同一 incoming 合并任意次结果相同；incoming 为空时是 no-op。
// 冲突裁决：incoming 的 updatedAt 严格大于现有记录时才替换，持平保留现有。
// nowMillis 用于补全缺失的时间戳（Unix 毫秒）。
func MergeRecords(existing, incoming []model.LectureRecord, nowMillis int64) []model.LectureRecord {
	merged := make(map[string]model.LectureRecord, len(existing)+len(incoming))

	// 1. 现有记录按 ID 建立索引；缺 ID 的旧形态记录就地补全：
	//    字段齐全的推导确定性 ID，否则分配随机 ID（不可再去重）
	for _, rec := range existing {
		rec = ensureIdentity(rec)
		merged[rec.ID] = rec
	}

	// 2. 逐条处理 incoming
	for _, rec := range incoming {
		rec = ensureIdentity(rec)
		if rec.CreatedAt == 0 {
			rec.CreatedAt = nowMillis
		}
		if rec.UpdatedAt == 0 {
			rec.UpdatedAt = nowMillis
		}

		current, ok := merged[rec.ID]
		if !ok {
			merged[rec.ID] = rec
			continue
		}
		if rec.UpdatedAt > current.UpdatedAt {
			merged[rec.ID] = rec
		}
	}

	return sortRecords(merged)
}

// CollapseByLectureKey 兜底收敛：按 (subjectId, lectureIndex) 分组，
// 每组仅保留 updatedAt 最大的记录。用于清理随机 ID 造成的重复，
// 仅作用于单个日期的记录集，绝不属于主合并路径 —— 当 lectureIndex
// 编号发生漂移时它可能丢弃逻辑上不同的记录。
func CollapseByLectureKey(records []model.LectureRecord) []model.LectureRecord {
	groups := make(map[string]model.LectureRecord, len(records))
	for _, rec := range records {
		key := rec.LectureKey()
		current, ok := groups[key]
		if !ok || rec.UpdatedAt > current.UpdatedAt {
			groups[key] = rec
		}
	}
	return sortRecords(groups)
}

// ensureIdentity 补全记录 ID（见标识方案）
func ensureIdentity(rec model.LectureRecord) model.LectureRecord {
	if rec.ID != "" {
		return rec
	}
	if rec.HasDeterministicIdentity() {
		rec.ID = model.MakeLectureID(rec.Date, rec.SubjectID, rec.LectureIndex)
	} else {
		rec.ID = model.NewFallbackID()
	}
	return rec
}

// sortRecords 以 (date, subjectId, lectureIndex, id) 排序输出，
// 保证合并结果与快照导出的字节级可重现性
func sortRecords(m map[string]model.LectureRecord) []model.LectureRecord {
	out := make([]model.LectureRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.LectureIndex != b.LectureIndex {
			return a.LectureIndex < b.LectureIndex
		}
		return a.ID < b.ID
	})
	return out
}
