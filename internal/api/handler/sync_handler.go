package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/service"
	pkgerrors "classtrack/backend/pkg/errors"
	"classtrack/backend/pkg/response"
)

// SyncHandler 同步模块 HTTP 处理器
type SyncHandler struct {
	syncSvc service.SyncService
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(syncSvc service.SyncService) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc}
}

// SyncNow 手动同步：推送本地记录后拉取合并
// POST /api/v1/sync
func (h *SyncHandler) SyncNow(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.syncSvc.SyncNow(c.Request.Context(), uid)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, result)
}

// ResolveConflict 应用登录冲突决策
// POST /api/v1/sync/resolve-conflict
func (h *SyncHandler) ResolveConflict(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.syncSvc.ResolveConflict(c.Request.Context(), uid, req.Decision); err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, nil)
}

// MigrateLegacy 迁移旧版聚合文档为逐节课记录（可重复执行）
// POST /api/v1/sync/migrate-legacy
func (h *SyncHandler) MigrateLegacy(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	migrated, err := h.syncSvc.MigrateLegacy(c.Request.Context(), uid)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, dto.MigrateLegacyResponse{MigratedDocuments: migrated})
}

func (h *SyncHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSyncConflictDecision):
		response.Conflict(c, 15001, "本地已有出勤数据，需要显式冲突决策")
	case errors.Is(err, service.ErrInvalidDecision):
		response.BadRequest(c, 15002, "冲突决策无效")
	case errors.Is(err, pkgerrors.ErrTransport):
		// 云端写入失败，本地状态有效，可重试
		response.BadGateway(c, 15003, "云端同步暂不可用，请稍后重试")
	default:
		response.InternalError(c)
	}
}
