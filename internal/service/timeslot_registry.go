package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/C4erries/edumax/internal/dto"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/repository"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
	"github.com/C4erries/edumax/pkg/validate"
)

// ── 节次模块业务错误 ──

var (
	ErrTimeslotNotFound = fmt.Errorf("%w: 节次未登记", pkgerrors.ErrNotFound)
)

// TimeslotRegistry 节次登记表：节次号 → 上下课时间
// 只读参考数据，首次访问时整体加载并缓存
type TimeslotRegistry interface {
	Resolve(ctx context.Context, pairNo int) (*model.Timeslot, error)
	List(ctx context.Context) ([]dto.TimeslotResponse, error)
	Reload(ctx context.Context) error
}

type timeslotRegistry struct {
	repo   *repository.Repository
	logger *zap.Logger

	mu     sync.RWMutex
	loaded bool
	byPair map[int]model.Timeslot
	sorted []model.Timeslot
}

// NewTimeslotRegistry 创建 TimeslotRegistry 实例
func NewTimeslotRegistry(repo *repository.Repository, logger *zap.Logger) TimeslotRegistry {
	return &timeslotRegistry{repo: repo, logger: logger}
}

// ────────────────────── Resolve ──────────────────────

func (r *timeslotRegistry) Resolve(ctx context.Context, pairNo int) (*model.Timeslot, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	slot, ok := r.byPair[pairNo]
	if !ok {
		return nil, fmt.Errorf("%w: 第 %d 节", ErrTimeslotNotFound, pairNo)
	}
	return &slot, nil
}

// ────────────────────── List ──────────────────────

func (r *timeslotRegistry) List(ctx context.Context) ([]dto.TimeslotResponse, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]dto.TimeslotResponse, 0, len(r.sorted))
	for i := range r.sorted {
		s := &r.sorted[i]
		list = append(list, dto.TimeslotResponse{
			PairNo:    s.PairNo,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Range:     s.Range(),
		})
	}
	return list, nil
}

// ────────────────────── Reload ──────────────────────

func (r *timeslotRegistry) Reload(ctx context.Context) error {
	slots, err := r.repo.Timeslot.List(ctx)
	if err != nil {
		r.logger.Error("加载节次失败", zap.Error(err))
		return pkgerrors.Persistence(err)
	}

	byPair := make(map[int]model.Timeslot, len(slots))
	sorted := make([]model.Timeslot, 0, len(slots))
	for _, s := range slots {
		if reason := invalidSlot(&s); reason != "" {
			// 脏数据不进入缓存，引用它的课程按"节次未登记"处理
			r.logger.Warn("节次数据无效，已忽略",
				zap.Int("pair_no", s.PairNo),
				zap.String("start_time", s.StartTime),
				zap.String("end_time", s.EndTime),
				zap.String("reason", reason),
			)
			continue
		}
		byPair[s.PairNo] = s
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PairNo < sorted[j].PairNo })

	r.mu.Lock()
	r.byPair = byPair
	r.sorted = sorted
	r.loaded = true
	r.mu.Unlock()
	return nil
}

func (r *timeslotRegistry) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Reload(ctx)
}

// invalidSlot 返回节次无效的原因，有效时返回空串
func invalidSlot(s *model.Timeslot) string {
	v := validate.Validator()
	if s.PairNo <= 0 {
		return "节次号必须为正数"
	}
	if v.Var(s.StartTime, "hhmm") != nil || v.Var(s.EndTime, "hhmm") != nil {
		return "时间格式应为 HH:MM"
	}
	// HH:MM 定长，字典序即时间序
	if s.StartTime >= s.EndTime {
		return "开始时间必须早于结束时间"
	}
	return ""
}
