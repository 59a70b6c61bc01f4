package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/service"
	"classtrack/backend/pkg/response"
)

// DayHandler 日记录模块 HTTP 处理器
type DayHandler struct {
	daySvc service.DayService
}

// NewDayHandler 创建 DayHandler
func NewDayHandler(daySvc service.DayService) *DayHandler {
	return &DayHandler{daySvc: daySvc}
}

// UpsertDay 设置某天的假期标记与备注
// PUT /api/v1/days/:date
func (h *DayHandler) UpsertDay(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpsertDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.daySvc.Upsert(c.Request.Context(), uid, c.Param("date"), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			response.BadRequest(c, 13001, "日期格式无效，应为 YYYY-MM-DD")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// GetDay 查询某天的日记录
// GET /api/v1/days/:date
func (h *DayHandler) GetDay(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.daySvc.Get(c.Request.Context(), uid, c.Param("date"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			response.BadRequest(c, 13001, "日期格式无效，应为 YYYY-MM-DD")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// ListDays 全部日记录
// GET /api/v1/days
func (h *DayHandler) ListDays(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.daySvc.List(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": result})
}
