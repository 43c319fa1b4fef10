package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/C4erries/edumax/internal/dto"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/service"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
	"github.com/C4erries/edumax/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ScheduleHandler 课表模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
	patchEngine service.PatchEngine
	exportSvc   service.ExportService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService, patchEngine service.PatchEngine, exportSvc service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc, patchEngine: patchEngine, exportSvc: exportSvc}
}

// GetSchedule 获取课表
// GET /api/v1/schedule?group_id=xxx | teacher_user_id=xxx [&week_start=YYYY-MM-DD]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	var req dto.ScheduleQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败：group_id 与 teacher_user_id 必须且只能提供一个")
		return
	}

	result, err := h.scheduleSvc.GetSchedule(c.Request.Context(), scopeOf(&req.ScheduleScopeQuery), weekStartOf(req.WeekStart))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// PatchSchedule 批量应用课表补丁
// PATCH /api/v1/schedule/patch?group_id=xxx | teacher_user_id=xxx
//
// 都不传时作用于调用者本人的教师课表。
// 单条补丁失败不影响其他补丁，结果中逐条给出原因；只要有一条成功，版本 +1。
func (h *ScheduleHandler) PatchSchedule(c *gin.Context) {
	var q dto.PatchScopeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败：group_id 与 teacher_user_id 只能提供一个")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	scope := model.Scope{Type: model.ScopeTeacher, ID: callerID}
	switch {
	case q.GroupID != "":
		scope = model.Scope{Type: model.ScopeGroup, ID: q.GroupID}
	case q.TeacherUserID != "":
		scope = model.Scope{Type: model.ScopeTeacher, ID: q.TeacherUserID}
	}

	patches, err := decodePatchList(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c)
			return
		}
		response.BadRequest(c, 13001, "请求体应为补丁对象数组")
		return
	}

	result, err := h.patchEngine.Apply(c.Request.Context(), scope, callerID, patches)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// ListChangelog 获取变更日志（最早的在前）
// GET /api/v1/schedule/changelog?group_id=xxx | teacher_user_id=xxx [&page=1&page_size=20]
func (h *ScheduleHandler) ListChangelog(c *gin.Context) {
	var req dto.ChangelogQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.scheduleSvc.ListChangelog(c.Request.Context(), scopeOf(&req.ScheduleScopeQuery), &req.PaginationRequest)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetVersion 获取课表版本
// GET /api/v1/schedule/version?group_id=xxx | teacher_user_id=xxx
func (h *ScheduleHandler) GetVersion(c *gin.Context) {
	var req dto.ScheduleScopeQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	v, err := h.scheduleSvc.GetVersion(c.Request.Context(), scopeOf(&req))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, v)
}

// ExportSchedule 导出课表
// GET /api/v1/schedule/export?group_id=xxx | teacher_user_id=xxx [&week_start=YYYY-MM-DD]
func (h *ScheduleHandler) ExportSchedule(c *gin.Context) {
	var req dto.ScheduleQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, err := h.exportSvc.ExportSchedule(c.Request.Context(), scopeOf(&req.ScheduleScopeQuery), weekStartOf(req.WeekStart))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// handleScheduleError 统一处理课表模块业务错误
func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidScope):
		response.BadRequest(c, 13020, "作用域无效")
	case errors.Is(err, service.ErrEmptyBatch):
		response.BadRequest(c, 13021, "补丁列表不能为空")
	case errors.Is(err, service.ErrBatchTooLarge):
		response.BadRequest(c, 13022, "补丁数量超过上限")
	case errors.Is(err, service.ErrScopeNotFound):
		response.NotFound(c, 13023, "班级或教师不存在")
	case errors.Is(err, pkgerrors.ErrValidation):
		response.BadRequest(c, 10001, err.Error())
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 10006, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// ── 辅助函数 ──

func scopeOf(q *dto.ScheduleScopeQuery) model.Scope {
	if q.GroupID != "" {
		return model.Scope{Type: model.ScopeGroup, ID: q.GroupID}
	}
	return model.Scope{Type: model.ScopeTeacher, ID: q.TeacherUserID}
}

// weekStartOf week_start 已由 binding 校验格式，空串表示不过滤
func weekStartOf(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// decodePatchList 请求体必须是 JSON 数组；单个元素的类型错误留给补丁引擎逐条报告
func decodePatchList(body io.Reader) ([]dto.PatchRequest, error) {
	if body == nil {
		return nil, errors.New("请求体为空")
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	var patches []dto.PatchRequest
	if err := json.Unmarshal(raw, &patches); err != nil {
		return nil, err
	}
	if patches == nil {
		// `null` 按空列表处理
		patches = []dto.PatchRequest{}
	}
	return patches, nil
}
