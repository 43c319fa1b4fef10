package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/C4erries/edumax/internal/model"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
)

// LessonRepository 课程数据访问接口
// 没有删除方法：取消课程通过 status 标记
type LessonRepository interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	GetByID(ctx context.Context, id string) (*model.Lesson, error)
	Update(ctx context.Context, lesson *model.Lesson) error

	ListByGroup(ctx context.Context, groupID string, week *model.Week) ([]model.Lesson, error)
	ListByTeacher(ctx context.Context, teacherUserID string, week *model.Week) ([]model.Lesson, error)

	// FindRoomConflicts / FindTeacherConflicts 返回与 lesson 同教室（同教师）、同节次、
	// 周范围有交集的其他有效课程
	FindRoomConflicts(ctx context.Context, lesson *model.Lesson) ([]model.Lesson, error)
	FindTeacherConflicts(ctx context.Context, lesson *model.Lesson) ([]model.Lesson, error)

	ListGroupIDs(ctx context.Context, lessonID string) ([]string, error)
	GroupIDsByLessons(ctx context.Context, lessonIDs []string) (map[string][]string, error)
	AddGroup(ctx context.Context, lessonID, groupID string) error
	RemoveGroup(ctx context.Context, lessonID, groupID string) error

	// LockSlots 获取事务级 advisory lock，跨作用域防止重复占用教室/教师；需在事务内调用
	LockSlots(ctx context.Context, keys []string) error
}

type lessonRepo struct {
	db *gorm.DB
}

// NewLessonRepo 创建 LessonRepository 实例
func NewLessonRepo(db *gorm.DB) LessonRepository {
	return &lessonRepo{db: db}
}

func (r *lessonRepo) Create(ctx context.Context, lesson *model.Lesson) error {
	return r.db.WithContext(ctx).Create(lesson).Error
}

func (r *lessonRepo) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.db.WithContext(ctx).
		Where("lesson_id = ?", id).
		First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) Update(ctx context.Context, lesson *model.Lesson) error {
	oldVersion := lesson.Version
	result := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Where("lesson_id = ? AND version = ?", lesson.LessonID, oldVersion).
		Updates(map[string]interface{}{
			"teacher_user_id":  lesson.TeacherUserID,
			"room_id":          lesson.RoomID,
			"subject_id":       lesson.SubjectID,
			"pair_no":          lesson.PairNo,
			"valid_from":       lesson.ValidFrom,
			"valid_until":      lesson.ValidUntil,
			"status":           lesson.Status,
			"schedule_version": lesson.ScheduleVersion,
			"updated_by":       lesson.UpdatedBy,
			"updated_at":       gorm.Expr("NOW()"),
			"version":          oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	lesson.Version = oldVersion + 1
	return nil
}

// ── 查询 ──

func (r *lessonRepo) ListByGroup(ctx context.Context, groupID string, week *model.Week) ([]model.Lesson, error) {
	var lessons []model.Lesson
	db := r.db.WithContext(ctx).
		Joins("JOIN lesson_groups lg ON lg.lesson_id = lessons.lesson_id").
		Where("lg.group_id = ? AND lessons.status = ?", groupID, model.LessonActive)
	err := scopeWeek(db, week).
		Order("lessons.pair_no ASC, lessons.subject_id ASC, lessons.lesson_id ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonRepo) ListByTeacher(ctx context.Context, teacherUserID string, week *model.Week) ([]model.Lesson, error) {
	var lessons []model.Lesson
	db := r.db.WithContext(ctx).
		Where("lessons.teacher_user_id = ? AND lessons.status = ?", teacherUserID, model.LessonActive)
	err := scopeWeek(db, week).
		Order("lessons.pair_no ASC, lessons.subject_id ASC, lessons.lesson_id ASC").
		Find(&lessons).Error
	return lessons, err
}

// scopeWeek 周过滤：valid_from ≤ 周日 且 valid_until ≥ 周一（NULL 视为无界）
func scopeWeek(db *gorm.DB, week *model.Week) *gorm.DB {
	if week == nil {
		return db
	}
	return db.
		Where("(lessons.valid_from IS NULL OR lessons.valid_from <= ?)", week.Sunday).
		Where("(lessons.valid_until IS NULL OR lessons.valid_until >= ?)", week.Monday)
}

// ── 冲突检测 ──

func (r *lessonRepo) FindRoomConflicts(ctx context.Context, lesson *model.Lesson) ([]model.Lesson, error) {
	return r.findConflicts(ctx, "room_id", lesson.RoomID, lesson)
}

func (r *lessonRepo) FindTeacherConflicts(ctx context.Context, lesson *model.Lesson) ([]model.Lesson, error) {
	return r.findConflicts(ctx, "teacher_user_id", lesson.TeacherUserID, lesson)
}

func (r *lessonRepo) findConflicts(ctx context.Context, column, value string, lesson *model.Lesson) ([]model.Lesson, error) {
	db := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Where("pair_no = ? AND status = ?", lesson.PairNo, model.LessonActive)
	if lesson.LessonID != "" {
		db = db.Where("lesson_id <> ?", lesson.LessonID)
	}
	if lesson.ValidUntil != nil {
		db = db.Where("(valid_from IS NULL OR valid_from <= ?)", *lesson.ValidUntil)
	}
	if lesson.ValidFrom != nil {
		db = db.Where("(valid_until IS NULL OR valid_until >= ?)", *lesson.ValidFrom)
	}

	var lessons []model.Lesson
	err := db.Order("lesson_id ASC").Find(&lessons).Error
	return lessons, err
}

// ── 班级关联 ──

func (r *lessonRepo) ListGroupIDs(ctx context.Context, lessonID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.LessonGroup{}).
		Where("lesson_id = ?", lessonID).
		Order("group_id ASC").
		Pluck("group_id", &ids).Error
	return ids, err
}

func (r *lessonRepo) GroupIDsByLessons(ctx context.Context, lessonIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(lessonIDs))
	if len(lessonIDs) == 0 {
		return result, nil
	}
	var links []model.LessonGroup
	err := r.db.WithContext(ctx).
		Where("lesson_id IN ?", lessonIDs).
		Order("lesson_id ASC, group_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		result[l.LessonID] = append(result[l.LessonID], l.GroupID)
	}
	return result, nil
}

func (r *lessonRepo) AddGroup(ctx context.Context, lessonID, groupID string) error {
	return r.db.WithContext(ctx).
		Create(&model.LessonGroup{LessonID: lessonID, GroupID: groupID}).Error
}

func (r *lessonRepo) RemoveGroup(ctx context.Context, lessonID, groupID string) error {
	return r.db.WithContext(ctx).
		Where("lesson_id = ? AND group_id = ?", lessonID, groupID).
		Delete(&model.LessonGroup{}).Error
}

// ── 锁 ──

func (r *lessonRepo) LockSlots(ctx context.Context, keys []string) error {
	sorted := append([]string{}, keys...)
	sort.Strings(sorted) // 固定加锁顺序，避免死锁
	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		if err := r.db.WithContext(ctx).
			Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", k).Error; err != nil {
			return err
		}
	}
	return nil
}
