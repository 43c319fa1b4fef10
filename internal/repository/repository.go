package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Timeslot        TimeslotRepository
	Lesson          LessonRepository
	Changelog       ChangelogRepository
	ScheduleVersion ScheduleVersionRepository
	User            UserRepository
	Group           GroupRepository
	Room            RoomRepository
	Subject         SubjectRepository
	Notification    NotificationRepository
	Archive         ArchiveRepository

	Tx Transactor
}

// Transactor 在单个数据库事务中执行 fn
// fn 收到的 Repository 绑定到该事务；fn 返回错误时整体回滚
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Timeslot:        NewTimeslotRepo(db),
		Lesson:          NewLessonRepo(db),
		Changelog:       NewChangelogRepo(db),
		ScheduleVersion: NewScheduleVersionRepo(db),
		User:            NewUserRepo(db),
		Group:           NewGroupRepo(db),
		Room:            NewRoomRepo(db),
		Subject:         NewSubjectRepo(db),
		Notification:    NewNotificationRepo(db),
		Archive:         NewArchiveRepo(db),
		Tx:              &gormTransactor{db: db},
	}
}

type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) WithinTx(ctx context.Context, fn func(tx *Repository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
