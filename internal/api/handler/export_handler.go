package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/service"
	"classtrack/backend/pkg/response"
)

// ExportHandler 导出与备份模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSnapshot 导出本地工作集快照
// GET /api/v1/export/snapshot
func (h *ExportHandler) ExportSnapshot(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	snapshot, err := h.exportSvc.ExportSnapshot(c.Request.Context(), uid)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, snapshot)
}

// ImportSnapshot 导入快照（按时间戳合并）
// POST /api/v1/export/snapshot
func (h *ExportHandler) ImportSnapshot(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var snapshot dto.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		response.BadRequest(c, 10001, "快照格式无效")
		return
	}

	if err := h.exportSvc.ImportSnapshot(c.Request.Context(), uid, &snapshot); err != nil {
		if errors.Is(err, service.ErrSnapshotVersion) {
			response.BadRequest(c, 16001, "不支持的快照版本")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}

// ExportReport 导出出勤统计报表 Excel
// GET /api/v1/export/report
func (h *ExportHandler) ExportReport(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportReport(c.Request.Context(), uid)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeAttachment(c, buf.Bytes(), filename,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// ExportHolidayCalendar 导出假期日历 ICS
// GET /api/v1/export/holidays.ics
func (h *ExportHandler) ExportHolidayCalendar(c *gin.Context) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportHolidayCalendar(c.Request.Context(), uid)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeAttachment(c, buf.Bytes(), filename, "text/calendar")
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoSubjects):
		response.BadRequest(c, 16002, "暂无科目，无法生成报表")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}

// writeAttachment 设置下载响应头并写入二进制内容
func writeAttachment(c *gin.Context, data []byte, filename, contentType string) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", contentType)
	c.Data(http.StatusOK, contentType, data)
}
