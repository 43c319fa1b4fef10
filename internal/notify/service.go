package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/C4erries/edumax/config"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/repository"
	"github.com/C4erries/edumax/pkg/metrics"
)

var (
	ErrQueueFull = errors.New("通知队列已满")
	ErrStopped   = errors.New("通知服务已停止")
)

const (
	sendTimeout      = 5 * time.Second
	retryMaxDelay    = 10 * time.Second
	sweepBatchSize   = 200
	sweepMaxAttempts = 10
)

// Message 推送到频道的消息体
type Message struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	RelatedType    string    `json:"related_type,omitempty"`
	RelatedID      string    `json:"related_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Service 通知分发：先落库（站内信 + outbox），再经限流的 worker 池推送
// pushed_at 为空的记录由 Sweep 定时重推
type Service struct {
	mu sync.Mutex

	cfg     config.NotifyConfig
	repo    repository.NotificationRepository
	pub     Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
	limiter *rate.Limiter

	queue     chan model.Notification
	accepting bool
	sendWG    sync.WaitGroup
	workerWG  sync.WaitGroup
	runCtx    context.Context
	runCancel context.CancelFunc

	// 已入队未处理完的通知，避免 Sweep 重复入队
	fmu      sync.Mutex
	inflight map[string]struct{}
}

// NewService 创建通知服务；pub 为 nil 时只写站内信不推送
func NewService(cfg *config.NotifyConfig, repo repository.NotificationRepository, pub Publisher, m *metrics.Metrics, logger *zap.Logger) *Service {
	c := *cfg
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 512
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 20
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "edumax:notify"
	}

	return &Service{
		cfg:      c,
		repo:     repo,
		pub:      pub,
		metrics:  m,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(c.RatePerSec), c.RatePerSec),
		inflight: make(map[string]struct{}),
	}
}

func (s *Service) pushEnabled() bool {
	return s.cfg.Enabled && s.pub != nil
}

// Start 启动推送 worker；未启用推送时为空操作
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil || !s.pushEnabled() {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan model.Notification, s.cfg.QueueSize)
	s.accepting = true
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	workers := s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		s.workerWG.Add(1)
		go func(idx int) {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("通知 worker panic",
						zap.Int("worker", idx),
						zap.Any("panic", r),
						zap.String("stack", string(debug.Stack())),
					)
				}
			}()
			s.workerLoop()
		}(i)
	}
	s.logger.Info("通知推送已启动", zap.Int("workers", workers), zap.Int("rate_per_sec", s.cfg.RatePerSec))
}

// Stop 停止接收并尽量在 ctx 截止前推送完队列中的消息
// 未推送的记录保留 pushed_at 为空，重启后由 Sweep 补推
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	cancel := s.runCancel
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.mu.Unlock()

	enqueued := make(chan struct{})
	go func() {
		s.sendWG.Wait()
		close(q)
		close(enqueued)
	}()

	drained := make(chan struct{})
	go func() {
		<-enqueued
		s.workerWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("通知队列未在超时前推送完毕，剩余消息将由补推任务处理")
	}
	cancel()

	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

// Dispatch 为每个受影响用户写入一条通知并排队推送
func (s *Service) Dispatch(ctx context.Context, f Fanout) error {
	if len(f.UserIDs) == 0 {
		return nil
	}

	relatedType := model.RelatedScheduleBatch
	batchID := f.BatchID
	title, content := f.Title(), f.Content()
	now := time.Now()
	items := make([]model.Notification, 0, len(f.UserIDs))
	for _, uid := range f.UserIDs {
		items = append(items, model.Notification{
			NotificationID: uuid.NewString(),
			UserID:         uid,
			Type:           model.NotificationScheduleChanged,
			Title:          title,
			Content:        content,
			RelatedType:    &relatedType,
			RelatedID:      &batchID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := s.repo.BatchCreate(ctx, items); err != nil {
		return fmt.Errorf("写入通知失败: %w", err)
	}

	if !s.pushEnabled() {
		return nil
	}
	var dropped int
	for _, n := range items {
		if err := s.enqueue(n); err != nil {
			dropped++
			s.metrics.IncNotification("dropped")
		}
	}
	if dropped > 0 {
		s.logger.Warn("部分通知未能入队，等待补推",
			zap.String("batch_id", f.BatchID),
			zap.Int("dropped", dropped),
		)
	}
	return nil
}

// Sweep 重新推送 pushed_at 为空的通知，返回入队数量
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if !s.pushEnabled() {
		return 0, nil
	}
	items, err := s.repo.ListUnpushed(ctx, sweepMaxAttempts, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("查询待推送通知失败: %w", err)
	}
	n := 0
	for _, item := range items {
		if err := s.enqueue(item); err != nil {
			if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrStopped) {
				break
			}
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) enqueue(n model.Notification) error {
	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	s.fmu.Lock()
	if _, ok := s.inflight[n.NotificationID]; ok {
		s.fmu.Unlock()
		return nil
	}
	s.inflight[n.NotificationID] = struct{}{}
	s.fmu.Unlock()

	select {
	case q <- n:
		return nil
	default:
		s.done(n.NotificationID)
		return ErrQueueFull
	}
}

func (s *Service) done(id string) {
	s.fmu.Lock()
	delete(s.inflight, id)
	s.fmu.Unlock()
}

func (s *Service) workerLoop() {
	s.mu.Lock()
	q := s.queue
	runCtx := s.runCtx
	s.mu.Unlock()

	for n := range q {
		s.pushWithRetry(runCtx, n)
		s.done(n.NotificationID)
	}
}

func (s *Service) pushWithRetry(ctx context.Context, n model.Notification) {
	payload, err := json.Marshal(toMessage(n))
	if err != nil {
		s.logger.Error("通知序列化失败", zap.String("notification_id", n.NotificationID), zap.Error(err))
		return
	}
	channel := s.cfg.ChannelPrefix + ":" + n.UserID
	maxAttempts := 1 + s.cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		_, lastErr = s.pub.Publish(callCtx, channel, payload)
		cancel()
		if lastErr == nil {
			s.metrics.IncNotification("ok")
			if err := s.repo.MarkPushed(context.WithoutCancel(ctx), n.NotificationID, time.Now()); err != nil {
				s.logger.Warn("标记通知已推送失败", zap.String("notification_id", n.NotificationID), zap.Error(err))
			}
			return
		}

		if attempt == maxAttempts {
			break
		}
		s.metrics.IncNotification("retry")
		t := time.NewTimer(retryDelay(s.cfg.RetryBase, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	s.metrics.IncNotification("failed")
	s.logger.Warn("通知推送失败",
		zap.String("notification_id", n.NotificationID),
		zap.String("user_id", n.UserID),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	if err := s.repo.IncrementAttempts(context.WithoutCancel(ctx), n.NotificationID); err != nil {
		s.logger.Warn("更新推送次数失败", zap.String("notification_id", n.NotificationID), zap.Error(err))
	}
}

// retryDelay 指数退避：base·2^(attempt-1)，上限 10s
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

func toMessage(n model.Notification) Message {
	m := Message{
		NotificationID: n.NotificationID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Content:        n.Content,
		CreatedAt:      n.CreatedAt,
	}
	if n.RelatedType != nil {
		m.RelatedType = *n.RelatedType
	}
	if n.RelatedID != nil {
		m.RelatedID = *n.RelatedID
	}
	return m
}
