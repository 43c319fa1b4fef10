package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/C4erries/edumax/internal/model"
)

// ── 参考数据（只读）：用户、班级、教室、科目 ──

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// ListIDsByGroups 返回属于这些班级的用户 ID
	ListIDsByGroups(ctx context.Context, groupIDs []string) ([]string, error)
}

// GroupRepository 班级数据访问接口
type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*model.StudentGroup, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.StudentGroup, error)
}

// RoomRepository 教室数据访问接口
type RoomRepository interface {
	GetByID(ctx context.Context, id string) (*model.Room, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Room, error)
}

// SubjectRepository 科目数据访问接口
type SubjectRepository interface {
	GetByID(ctx context.Context, id string) (*model.Subject, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Subject, error)
}

// ── 通用实现 ──

func getByID[T any](ctx context.Context, db *gorm.DB, column, id string) (*T, error) {
	var v T
	err := db.WithContext(ctx).Where(column+" = ?", id).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func listByIDs[T any](ctx context.Context, db *gorm.DB, column string, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []T
	err := db.WithContext(ctx).Where(column+" IN ?", ids).Find(&list).Error
	return list, err
}

// ── User ──

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return getByID[model.User](ctx, r.db, "user_id", id)
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	return listByIDs[model.User](ctx, r.db, "user_id", ids)
}

func (r *userRepo) ListIDsByGroups(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("group_id IN ?", groupIDs).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ── StudentGroup ──

type groupRepo struct {
	db *gorm.DB
}

// NewGroupRepo 创建 GroupRepository 实例
func NewGroupRepo(db *gorm.DB) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) GetByID(ctx context.Context, id string) (*model.StudentGroup, error) {
	return getByID[model.StudentGroup](ctx, r.db, "group_id", id)
}

func (r *groupRepo) ListByIDs(ctx context.Context, ids []string) ([]model.StudentGroup, error) {
	return listByIDs[model.StudentGroup](ctx, r.db, "group_id", ids)
}

// ── Room ──

type roomRepo struct {
	db *gorm.DB
}

// NewRoomRepo 创建 RoomRepository 实例
func NewRoomRepo(db *gorm.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	return getByID[model.Room](ctx, r.db, "room_id", id)
}

func (r *roomRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Room, error) {
	return listByIDs[model.Room](ctx, r.db, "room_id", ids)
}

// ── Subject ──

type subjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo 创建 SubjectRepository 实例
func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	return getByID[model.Subject](ctx, r.db, "subject_id", id)
}

func (r *subjectRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Subject, error) {
	return listByIDs[model.Subject](ctx, r.db, "subject_id", ids)
}
