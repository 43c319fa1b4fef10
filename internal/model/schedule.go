package model

import (
	"sort"
	"time"
)

// 课表作用域
const (
	ScopeGroup   = "group"
	ScopeTeacher = "teacher"
)

// 课程状态
const (
	LessonActive    = "active"
	LessonCancelled = "cancelled"
)

// DateLayout 周范围字段的日期格式
const DateLayout = "2006-01-02"

// Scope 课表作用域：某个班级或某位教师的课表
type Scope struct {
	Type string `json:"scope_type"`
	ID   string `json:"scope_id"`
}

// Key 作用域锁与日志使用的键 "<type>:<id>"
func (s Scope) Key() string { return s.Type + ":" + s.ID }

// Lesson 课程表 — 对应 lessons
// 只能通过补丁引擎修改，取消后保留记录
type Lesson struct {
	LessonID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"lesson_id"`
	TeacherUserID   string     `gorm:"type:uuid;not null"                             json:"teacher_user_id"`
	RoomID          string     `gorm:"type:uuid;not null"                             json:"room_id"`
	SubjectID       string     `gorm:"type:uuid;not null"                             json:"subject_id"`
	PairNo          int        `gorm:"type:smallint;not null"                         json:"pair_no"`
	ValidFrom       *time.Time `gorm:"type:date"                                      json:"valid_from,omitempty"`
	ValidUntil      *time.Time `gorm:"type:date"                                      json:"valid_until,omitempty"`
	Status          string     `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	ScheduleVersion int64      `gorm:"not null;default:0"                             json:"schedule_version"`
	VersionedModel
}

func (Lesson) TableName() string { return "lessons" }

// IsActive 课程是否处于有效状态
func (l *Lesson) IsActive() bool { return l.Status == LessonActive }

// ActiveInWeek 课程在 [monday, sunday] 周内是否有效；未设置周范围视为始终有效
func (l *Lesson) ActiveInWeek(monday, sunday time.Time) bool {
	if l.ValidFrom != nil && l.ValidFrom.After(sunday) {
		return false
	}
	if l.ValidUntil != nil && l.ValidUntil.Before(monday) {
		return false
	}
	return true
}

// WindowOverlaps 两节课的有效周范围是否有交集（NULL 表示无界）
func (l *Lesson) WindowOverlaps(other *Lesson) bool {
	if l.ValidFrom != nil && other.ValidUntil != nil && l.ValidFrom.After(*other.ValidUntil) {
		return false
	}
	if other.ValidFrom != nil && l.ValidUntil != nil && other.ValidFrom.After(*l.ValidUntil) {
		return false
	}
	return true
}

// LessonGroup 课程-班级关联表 — 对应 lesson_groups
type LessonGroup struct {
	LessonID  string    `gorm:"type:uuid;primaryKey"               json:"lesson_id"`
	GroupID   string    `gorm:"type:uuid;primaryKey"               json:"group_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (LessonGroup) TableName() string { return "lesson_groups" }

// ScheduleVersion 课表版本表 — 对应 schedule_versions
// 每个成功应用的补丁批次 +1，从不回退
type ScheduleVersion struct {
	ScopeType string    `gorm:"type:varchar(20);primaryKey"        json:"scope_type"`
	ScopeID   string    `gorm:"type:uuid;primaryKey"               json:"scope_id"`
	Version   int64     `gorm:"not null;default:0"                 json:"version"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ScheduleVersion) TableName() string { return "schedule_versions" }

// LessonSnapshot 变更日志中记录的课程快照
type LessonSnapshot struct {
	LessonID      string   `json:"lesson_id"`
	TeacherUserID string   `json:"teacher_user_id"`
	RoomID        string   `json:"room_id"`
	SubjectID     string   `json:"subject_id"`
	PairNo        int      `json:"pair_no"`
	ValidFrom     string   `json:"valid_from,omitempty"`
	ValidUntil    string   `json:"valid_until,omitempty"`
	Status        string   `json:"status"`
	GroupIDs      []string `json:"group_ids"`
}

// Snapshot 生成课程快照，班级 ID 排序以保证快照稳定
func (l *Lesson) Snapshot(groupIDs []string) LessonSnapshot {
	ids := append([]string{}, groupIDs...)
	sort.Strings(ids)
	s := LessonSnapshot{
		LessonID:      l.LessonID,
		TeacherUserID: l.TeacherUserID,
		RoomID:        l.RoomID,
		SubjectID:     l.SubjectID,
		PairNo:        l.PairNo,
		Status:        l.Status,
		GroupIDs:      ids,
	}
	if l.ValidFrom != nil {
		s.ValidFrom = l.ValidFrom.Format(DateLayout)
	}
	if l.ValidUntil != nil {
		s.ValidUntil = l.ValidUntil.Format(DateLayout)
	}
	return s
}

// Week 周一到周日的日期范围
type Week struct {
	Monday time.Time
	Sunday time.Time
}

// WeekOf 返回包含 day 的那一周（周一至周日，按 day 所在时区的日期计算）
func WeekOf(day time.Time) Week {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7 // 周一=0
	monday := d.AddDate(0, 0, -offset)
	return Week{Monday: monday, Sunday: monday.AddDate(0, 0, 6)}
}
