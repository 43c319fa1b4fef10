package service

import (
	"go.uber.org/zap"

	"github.com/C4erries/edumax/config"
	"github.com/C4erries/edumax/internal/notify"
	"github.com/C4erries/edumax/internal/repository"
	"github.com/C4erries/edumax/pkg/archive"
	"github.com/C4erries/edumax/pkg/lock"
	"github.com/C4erries/edumax/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Timeslot TimeslotRegistry
	Schedule ScheduleService
	Patch    PatchEngine
	Export   ExportService
	Archive  ArchiveService
}

// NewService 创建 Service 聚合
// uploader 为 nil 时归档任务不可用；dispatcher 为 nil 时使用 notify.NopDispatcher
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	dispatcher notify.Dispatcher,
	uploader archive.Uploader,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}

	slots := NewTimeslotRegistry(repo, logger)
	schedule := NewScheduleService(repo, slots, logger)

	return &Service{
		Timeslot: slots,
		Schedule: schedule,
		Patch: NewPatchEngine(repo, slots, dispatcher, lock.NewKeyedMutex(), m, logger,
			WithMaxBatchSize(cfg.Schedule.MaxBatchSize)),
		Export:  NewExportService(repo, schedule, logger),
		Archive: NewArchiveService(&cfg.Archive, repo, uploader, m, logger),
	}
}
