package model

import "time"

// 通知类型
const (
	NotificationScheduleChanged = "schedule_changed"
	RelatedScheduleBatch        = "schedule_batch"
)

// Notification 通知消息表 — 对应 notifications
// 同时作为站内信与推送 outbox：pushed_at 为空表示尚未推送成功
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string     `gorm:"type:uuid;not null"                             json:"user_id"`
	Type           string     `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string     `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool       `gorm:"not null;default:false"                         json:"is_read"`
	RelatedType    *string    `gorm:"type:varchar(30)"                               json:"related_type,omitempty"` // schedule_batch
	RelatedID      *string    `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	PushedAt       *time.Time `json:"pushed_at,omitempty"`
	PushAttempts   int        `gorm:"not null;default:0"                             json:"push_attempts"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
