package model

import "time"

// Timeslot 节次表 — 对应 timeslots（只读参考数据）
type Timeslot struct {
	PairNo    int       `gorm:"type:smallint;primaryKey;autoIncrement:false" json:"pair_no"`
	StartTime string    `gorm:"type:varchar(5);not null"                     json:"start_time"` // HH:MM
	EndTime   string    `gorm:"type:varchar(5);not null"                     json:"end_time"`   // HH:MM
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"           json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"           json:"updated_at"`
}

// TableName 指定表名
func (Timeslot) TableName() string { return "timeslots" }

// Range 渲染为 "HH:MM - HH:MM"
func (t *Timeslot) Range() string {
	return t.StartTime + " - " + t.EndTime
}
