package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/service"
	"classtrack/backend/pkg/response"
)

// SubjectHandler 科目模块 HTTP 处理器
type SubjectHandler struct {
	subjectSvc service.SubjectService
}

// NewSubjectHandler 创建 SubjectHandler
func NewSubjectHandler(subjectSvc service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectSvc: subjectSvc}
}

// CreateSubject 创建科目
// POST /api/v1/subjects
func (h *SubjectHandler) CreateSubject(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.subjectSvc.Create(c.Request.Context(), uid, &req)
	if err != nil {
		if errors.Is(err, service.ErrSubjectNameTaken) {
			response.Conflict(c, 12001, "同名科目已存在")
			return
		}
		response.InternalError(c)
		return
	}

	response.Created(c, result)
}

// ListSubjects 科目列表
// GET /api/v1/subjects
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.subjectSvc.List(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": result})
}

// UpdateSubject 更新科目
// PUT /api/v1/subjects/:id
func (h *SubjectHandler) UpdateSubject(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.subjectSvc.Update(c.Request.Context(), uid, c.Param("id"), &req)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteSubject 删除科目（级联删除其全部课程记录）
// DELETE /api/v1/subjects/:id
func (h *SubjectHandler) DeleteSubject(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.subjectSvc.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *SubjectHandler) handleSubjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSubjectNotFound):
		response.NotFound(c, 12002, "科目不存在")
	case errors.Is(err, service.ErrSubjectNameTaken):
		response.Conflict(c, 12001, "同名科目已存在")
	default:
		response.InternalError(c)
	}
}
