package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChangelogEntry 课表变更日志 — 对应 changelog_entries（只追加）
// 每条成功应用的补丁对应一条记录，同一批次共享 batch_id 与 schedule_version
type ChangelogEntry struct {
	ChangelogID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"changelog_id"`
	Seq             int64          `gorm:"->"                                             json:"seq"` // 数据库 BIGSERIAL 分配
	ScopeType       string         `gorm:"type:varchar(20);not null"                      json:"scope_type"`
	ScopeID         string         `gorm:"type:uuid;not null"                             json:"scope_id"`
	BatchID         string         `gorm:"type:uuid;not null"                             json:"batch_id"`
	LessonID        string         `gorm:"type:uuid;not null"                             json:"lesson_id"`
	Op              string         `gorm:"type:varchar(30);not null"                      json:"op"`
	Before          datatypes.JSON `gorm:"type:jsonb"                                     json:"before,omitempty"`
	After           datatypes.JSON `gorm:"type:jsonb"                                     json:"after,omitempty"`
	Summary         string         `gorm:"type:text;not null"                             json:"summary"`
	ScheduleVersion int64          `gorm:"not null"                                       json:"schedule_version"`
	OperatorID      *string        `gorm:"type:uuid"                                      json:"operator_id,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (ChangelogEntry) TableName() string { return "changelog_entries" }

// ChangelogArchive 变更日志归档记录 — 对应 changelog_archives
type ChangelogArchive struct {
	ArchiveID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"archive_id"`
	FirstSeq   int64     `gorm:"not null"                                       json:"first_seq"`
	LastSeq    int64     `gorm:"not null"                                       json:"last_seq"`
	EntryCount int       `gorm:"not null"                                       json:"entry_count"`
	ObjectKey  string    `gorm:"type:text;not null"                             json:"object_key"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (ChangelogArchive) TableName() string { return "changelog_archives" }
