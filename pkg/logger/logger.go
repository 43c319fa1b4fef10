package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/C4erries/edumax/config"
)

// NewLogger 根据配置初始化 Zap 日志实例
// 返回的 AtomicLevel 用于配置热更新时调整日志级别
func NewLogger(cfg *config.LogConfig) (*zap.Logger, zap.AtomicLevel, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}
	atom := zap.NewAtomicLevelAt(level)
	zapCfg.Level = atom

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("初始化日志器失败: %w", err)
	}

	return logger, atom, nil
}

// SetLevel 运行时调整日志级别；无效级别保持原值并返回错误
func SetLevel(atom zap.AtomicLevel, level string) error {
	lv, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", level, err)
	}
	atom.SetLevel(lv)
	return nil
}

// ── 请求上下文 ──

type requestIDCtxKey struct{}

// WithRequestID 把请求 ID 写入 ctx，服务层日志据此关联到 HTTP 请求
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestID 返回 ctx 中的请求 ID，没有时返回空串
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// FromContext 为 l 附加 request_id 字段；ctx 中没有请求 ID 时原样返回 l
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := RequestID(ctx); id != "" {
		return l.With(zap.String("request_id", id))
	}
	return l
}
