package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"classtrack/backend/internal/service"
	"classtrack/backend/pkg/response"
)

// StatsHandler 统计模块 HTTP 处理器
type StatsHandler struct {
	statsSvc service.StatsService
}

// NewStatsHandler 创建 StatsHandler
func NewStatsHandler(statsSvc service.StatsService) *StatsHandler {
	return &StatsHandler{statsSvc: statsSvc}
}

// Overall 全科目汇总统计
// GET /api/v1/stats
func (h *StatsHandler) Overall(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.statsSvc.Overall(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// BySubject 单科目统计
// GET /api/v1/stats/subject/:id
func (h *StatsHandler) BySubject(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.statsSvc.BySubject(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSubjectNotFound) {
			response.NotFound(c, 12002, "科目不存在")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}
