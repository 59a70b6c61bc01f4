package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/service"
	"classtrack/backend/pkg/response"
)

// PeriodHandler 周期模块 HTTP 处理器
type PeriodHandler struct {
	periodSvc service.PeriodService
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc}
}

// GetActivePeriod 查询活动周期
// GET /api/v1/periods/active
func (h *PeriodHandler) GetActivePeriod(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	periodID, err := h.periodSvc.ActivePeriod(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.PeriodResponse{PeriodID: periodID, Active: true})
}

// StartPeriod 开启新周期（缺省 period_id 取当前 UTC 年月）
// POST /api/v1/periods
func (h *PeriodHandler) StartPeriod(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.StartPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	periodID, err := h.periodSvc.StartNewPeriod(c.Request.Context(), uid, req.PeriodID)
	if err != nil {
		if errors.Is(err, service.ErrPeriodIDInvalid) {
			response.BadRequest(c, 14001, "周期标识无效")
			return
		}
		response.InternalError(c)
		return
	}

	response.Created(c, dto.PeriodResponse{PeriodID: periodID, Active: true})
}

// ResetPeriod 以当前自然月重置周期
// POST /api/v1/periods/reset
func (h *PeriodHandler) ResetPeriod(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	periodID, err := h.periodSvc.ResetPeriod(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.PeriodResponse{PeriodID: periodID, Active: true})
}

// ListPeriods 历史周期列表
// GET /api/v1/periods
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	periods, err := h.periodSvc.List(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	activePeriod, err := h.periodSvc.ActivePeriod(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	list := make([]dto.PeriodResponse, 0, len(periods))
	for _, p := range periods {
		list = append(list, dto.PeriodResponse{
			PeriodID: p.PeriodID,
			Active:   p.PeriodID == activePeriod,
		})
	}

	response.OK(c, gin.H{"list": list})
}
