package dto

// ── 同步模块 DTO ──

// 登录时本地已有数据的冲突决策
const (
	DecisionUpload           = "upload"             // 将本地数据合并上传后再拉取
	DecisionUploadClearLocal = "upload-clear-local" // 上传后清空本地，再从云端水合
	DecisionSkip             = "skip"               // 跳过，保持本地数据不动
)

// ResolveConflictRequest 冲突决策请求
type ResolveConflictRequest struct {
	Decision string `json:"decision" binding:"required,oneof=upload upload-clear-local skip"`
}

// SyncResponse 同步结果响应
type SyncResponse struct {
	PushedDates   int    `json:"pushed_dates"`   // 推送的日期文档数
	PulledRecords int    `json:"pulled_records"` // 拉取合并后的本地记录总数
	ActivePeriod  string `json:"active_period"`
}

// MigrateLegacyResponse 旧版数据迁移结果
type MigrateLegacyResponse struct {
	MigratedDocuments int `json:"migrated_documents"`
}
