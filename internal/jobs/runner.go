package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultJobTimeout = 5 * time.Minute

// Func 定时任务体
type Func func(ctx context.Context) error

// Runner 基于 cron 的后台任务调度（通知补推、变更日志归档）
// 同一任务上一轮未结束时跳过本轮
type Runner struct {
	mu     sync.Mutex
	parser cron.Parser
	c      *cron.Cron
	logger *zap.Logger
	names  map[string]cron.EntryID

	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewRunner 创建调度器；loc 为 nil 时使用 UTC
func NewRunner(logger *zap.Logger, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{l: logger.Sugar()}
	r := &Runner{
		parser: parser,
		logger: logger,
		names:  make(map[string]cron.EntryID),
	}
	r.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	r.runCtx, r.runCancel = context.WithCancel(context.Background())
	return r
}

// Add 注册任务；spec 支持 5/6 段表达式与 @every 等描述符
func (r *Runner) Add(name, spec string, fn Func) error {
	if _, err := r.parser.Parse(spec); err != nil {
		return fmt.Errorf("任务 %s 的 cron 表达式无效 %q: %w", name, spec, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("任务 %s 已注册", name)
	}

	id, err := r.c.AddFunc(spec, func() { r.run(name, fn) })
	if err != nil {
		return fmt.Errorf("注册任务 %s 失败: %w", name, err)
	}
	r.names[name] = id
	r.logger.Info("定时任务已注册", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunNow 立即同步执行一次任务体（如启动时补推）
func (r *Runner) RunNow(name string, fn Func) {
	r.run(name, fn)
}

func (r *Runner) run(name string, fn Func) {
	ctx, cancel := context.WithTimeout(r.runCtx, defaultJobTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		r.logger.Error("定时任务执行失败",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("定时任务完成", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

// Len 已注册任务数
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Start 启动调度
func (r *Runner) Start() {
	r.c.Start()
}

// Stop 停止调度并等待运行中的任务结束；ctx 到期后取消任务上下文
func (r *Runner) Stop(ctx context.Context) {
	done := r.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("等待定时任务结束超时，取消运行中的任务")
	}
	r.runCancel()
}

// cronLogger 将 cron 内部日志转到 zap
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
