package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/C4erries/edumax/internal/service"
	"github.com/C4erries/edumax/pkg/response"
)

// TimeslotHandler 节次模块 HTTP 处理器（只读）
type TimeslotHandler struct {
	slots service.TimeslotRegistry
}

// NewTimeslotHandler 创建 TimeslotHandler
func NewTimeslotHandler(slots service.TimeslotRegistry) *TimeslotHandler {
	return &TimeslotHandler{slots: slots}
}

// ListTimeslots 获取节次列表
// GET /api/v1/timeslots
func (h *TimeslotHandler) ListTimeslots(c *gin.Context) {
	list, err := h.slots.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}
