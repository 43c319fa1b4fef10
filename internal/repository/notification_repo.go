package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/C4erries/edumax/internal/model"
)

// NotificationRepository 通知（站内信 + 推送 outbox）数据访问接口
type NotificationRepository interface {
	BatchCreate(ctx context.Context, items []model.Notification) error
	MarkPushed(ctx context.Context, id string, at time.Time) error
	IncrementAttempts(ctx context.Context, id string) error
	// ListUnpushed 返回尚未推送且重试次数未超限的通知，最早的在前
	ListUnpushed(ctx context.Context, maxAttempts, limit int) ([]model.Notification, error)
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) BatchCreate(ctx context.Context, items []model.Notification) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&items, 500).Error
}

func (r *notificationRepo) MarkPushed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ? AND pushed_at IS NULL", id).
		Updates(map[string]interface{}{
			"pushed_at":     at,
			"push_attempts": gorm.Expr("push_attempts + 1"),
			"updated_at":    gorm.Expr("NOW()"),
		}).Error
}

func (r *notificationRepo) IncrementAttempts(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ?", id).
		Updates(map[string]interface{}{
			"push_attempts": gorm.Expr("push_attempts + 1"),
			"updated_at":    gorm.Expr("NOW()"),
		}).Error
}

func (r *notificationRepo) ListUnpushed(ctx context.Context, maxAttempts, limit int) ([]model.Notification, error) {
	var items []model.Notification
	err := r.db.WithContext(ctx).
		Where("pushed_at IS NULL AND push_attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}
