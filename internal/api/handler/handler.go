package handler

import "github.com/C4erries/edumax/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Schedule *ScheduleHandler
	Timeslot *TimeslotHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Schedule: NewScheduleHandler(svc.Schedule, svc.Patch, svc.Export),
		Timeslot: NewTimeslotHandler(svc.Timeslot),
	}
}
