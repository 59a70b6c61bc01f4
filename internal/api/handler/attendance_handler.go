package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/service"
	"classtrack/backend/pkg/response"
)

// AttendanceHandler 出勤模块 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// Mark 标记单节课出勤
// POST /api/v1/attendance/mark
func (h *AttendanceHandler) Mark(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	record, err := h.attendanceSvc.Mark(c.Request.Context(), uid, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, record)
}

// MarkAll 对某天全部科目统一标记
// POST /api/v1/attendance/mark-all
func (h *AttendanceHandler) MarkAll(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.MarkAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	records, err := h.attendanceSvc.MarkAllForDate(c.Request.Context(), uid, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, dto.LectureListResponse{List: records})
}

// Delete 删除指定课程槽位（后续节次自动重排）
// POST /api/v1/attendance/delete
func (h *AttendanceHandler) Delete(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.DeleteLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.attendanceSvc.Delete(c.Request.Context(), uid, &req); err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListByDate 按日期查询记录
// GET /api/v1/attendance/date/:date
func (h *AttendanceHandler) ListByDate(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	records, err := h.attendanceSvc.ListByDate(c.Request.Context(), uid, c.Param("date"))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, dto.LectureListResponse{List: records})
}

// ListBySubject 按科目查询记录
// GET /api/v1/attendance/subject/:id
func (h *AttendanceHandler) ListBySubject(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	records, err := h.attendanceSvc.ListBySubject(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, dto.LectureListResponse{List: records})
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 13001, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrInvalidStatus):
		response.BadRequest(c, 13002, "出勤状态无效")
	case errors.Is(err, service.ErrInvalidLectureIndex):
		response.BadRequest(c, 13003, "节次必须连续，不能跳过空槽位")
	case errors.Is(err, service.ErrSubjectNotFound):
		response.NotFound(c, 12002, "科目不存在")
	default:
		response.InternalError(c)
	}
}
