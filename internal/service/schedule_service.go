package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/C4erries/edumax/internal/dto"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/repository"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
)

// ── 课表查询模块业务错误 ──

var (
	ErrInvalidScope = fmt.Errorf("%w: 作用域无效", pkgerrors.ErrValidation)
)

// unknownName 参考数据缺失时的渲染占位
const unknownName = "未知"

// ScheduleService 课表查询接口（只读）
type ScheduleService interface {
	// GetSchedule 返回渲染后的课表，无课程时返回空列表
	GetSchedule(ctx context.Context, scope model.Scope, weekStart *time.Time) (*dto.ScheduleListResponse, error)
	LessonsForGroup(ctx context.Context, groupID string, weekStart *time.Time) ([]model.Lesson, error)
	LessonsForTeacher(ctx context.Context, teacherUserID string, weekStart *time.Time) ([]model.Lesson, error)

	// ListChangelog 按作用域分页查询变更日志，最早的在前
	ListChangelog(ctx context.Context, scope model.Scope, page *dto.PaginationRequest) ([]dto.ChangelogEntryResponse, int64, error)
	GetVersion(ctx context.Context, scope model.Scope) (*dto.ScheduleVersionResponse, error)
}

type scheduleService struct {
	repo   *repository.Repository
	slots  TimeslotRegistry
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(repo *repository.Repository, slots TimeslotRegistry, logger *zap.Logger) ScheduleService {
	return &scheduleService{repo: repo, slots: slots, logger: logger}
}

// ────────────────────── Lessons ──────────────────────

func (s *scheduleService) LessonsForGroup(ctx context.Context, groupID string, weekStart *time.Time) ([]model.Lesson, error) {
	lessons, err := s.repo.Lesson.ListByGroup(ctx, groupID, weekOf(weekStart))
	if err != nil {
		s.logger.Error("查询班级课表失败", zap.String("group_id", groupID), zap.Error(err))
		return nil, pkgerrors.Persistence(err)
	}
	return lessons, nil
}

func (s *scheduleService) LessonsForTeacher(ctx context.Context, teacherUserID string, weekStart *time.Time) ([]model.Lesson, error) {
	lessons, err := s.repo.Lesson.ListByTeacher(ctx, teacherUserID, weekOf(weekStart))
	if err != nil {
		s.logger.Error("查询教师课表失败", zap.String("teacher_user_id", teacherUserID), zap.Error(err))
		return nil, pkgerrors.Persistence(err)
	}
	return lessons, nil
}

func weekOf(weekStart *time.Time) *model.Week {
	if weekStart == nil {
		return nil
	}
	w := model.WeekOf(*weekStart)
	return &w
}

// ────────────────────── GetSchedule ──────────────────────

func (s *scheduleService) GetSchedule(ctx context.Context, scope model.Scope, weekStart *time.Time) (*dto.ScheduleListResponse, error) {
	var (
		lessons []model.Lesson
		err     error
	)
	switch scope.Type {
	case model.ScopeGroup:
		lessons, err = s.LessonsForGroup(ctx, scope.ID, weekStart)
	case model.ScopeTeacher:
		lessons, err = s.LessonsForTeacher(ctx, scope.ID, weekStart)
	default:
		return nil, ErrInvalidScope
	}
	if err != nil {
		return nil, err
	}

	list, err := s.render(ctx, lessons)
	if err != nil {
		return nil, err
	}
	return &dto.ScheduleListResponse{List: list}, nil
}

// render 批量加载参考数据，把课程投影为展示记录
func (s *scheduleService) render(ctx context.Context, lessons []model.Lesson) ([]dto.LessonResponse, error) {
	list := make([]dto.LessonResponse, 0, len(lessons))
	if len(lessons) == 0 {
		return list, nil
	}

	lessonIDs := make([]string, 0, len(lessons))
	teacherIDs := make([]string, 0, len(lessons))
	roomIDs := make([]string, 0, len(lessons))
	subjectIDs := make([]string, 0, len(lessons))
	for i := range lessons {
		l := &lessons[i]
		lessonIDs = append(lessonIDs, l.LessonID)
		teacherIDs = append(teacherIDs, l.TeacherUserID)
		roomIDs = append(roomIDs, l.RoomID)
		subjectIDs = append(subjectIDs, l.SubjectID)
	}

	groupsByLesson, err := s.repo.Lesson.GroupIDsByLessons(ctx, lessonIDs)
	if err != nil {
		return nil, s.renderErr("班级关联", err)
	}
	var groupIDs []string
	for _, ids := range groupsByLesson {
		groupIDs = append(groupIDs, ids...)
	}

	teachers, err := s.repo.User.ListByIDs(ctx, uniqueStrings(teacherIDs))
	if err != nil {
		return nil, s.renderErr("教师", err)
	}
	rooms, err := s.repo.Room.ListByIDs(ctx, uniqueStrings(roomIDs))
	if err != nil {
		return nil, s.renderErr("教室", err)
	}
	subjects, err := s.repo.Subject.ListByIDs(ctx, uniqueStrings(subjectIDs))
	if err != nil {
		return nil, s.renderErr("科目", err)
	}
	groups, err := s.repo.Group.ListByIDs(ctx, uniqueStrings(groupIDs))
	if err != nil {
		return nil, s.renderErr("班级", err)
	}

	teacherNames := make(map[string]string, len(teachers))
	for _, t := range teachers {
		teacherNames[t.UserID] = t.FullName
	}
	roomNames := make(map[string]string, len(rooms))
	for i := range rooms {
		roomNames[rooms[i].RoomID] = rooms[i].Label()
	}
	subjectNames := make(map[string]string, len(subjects))
	for _, sub := range subjects {
		subjectNames[sub.SubjectID] = sub.Title
	}
	groupNames := make(map[string]string, len(groups))
	for _, g := range groups {
		groupNames[g.GroupID] = g.Name
	}

	for i := range lessons {
		l := &lessons[i]

		names := make([]string, 0, len(groupsByLesson[l.LessonID]))
		for _, gid := range groupsByLesson[l.LessonID] {
			if n, ok := groupNames[gid]; ok {
				names = append(names, n)
			}
		}
		sort.Strings(names)

		item := dto.LessonResponse{
			ID:      l.LessonID,
			Teacher: nameOr(teacherNames, l.TeacherUserID),
			Room:    nameOr(roomNames, l.RoomID),
			Subject: nameOr(subjectNames, l.SubjectID),
			PairNo:  l.PairNo,
			Groups:  names,
		}

		slot, err := s.slots.Resolve(ctx, l.PairNo)
		switch {
		case err == nil:
			r := slot.Range()
			item.Time = &r
		case errors.Is(err, ErrTimeslotNotFound):
			s.logger.Warn("课程引用了未登记的节次",
				zap.String("lesson_id", l.LessonID),
				zap.Int("pair_no", l.PairNo),
			)
		default:
			return nil, err
		}

		list = append(list, item)
	}
	return list, nil
}

func (s *scheduleService) renderErr(what string, err error) error {
	s.logger.Error("加载"+what+"失败", zap.Error(err))
	return pkgerrors.Persistence(err)
}

// ────────────────────── Changelog ──────────────────────

func (s *scheduleService) ListChangelog(ctx context.Context, scope model.Scope, page *dto.PaginationRequest) ([]dto.ChangelogEntryResponse, int64, error) {
	if scope.Type != model.ScopeGroup && scope.Type != model.ScopeTeacher {
		return nil, 0, ErrInvalidScope
	}

	entries, total, err := s.repo.Changelog.ListByScope(ctx, scope, page.GetOffset(), page.GetPageSize())
	if err != nil {
		s.logger.Error("查询变更日志失败", zap.String("scope", scope.Key()), zap.Error(err))
		return nil, 0, pkgerrors.Persistence(err)
	}

	list := make([]dto.ChangelogEntryResponse, 0, len(entries))
	for i := range entries {
		list = append(list, toChangelogResponse(&entries[i]))
	}
	return list, total, nil
}

func toChangelogResponse(e *model.ChangelogEntry) dto.ChangelogEntryResponse {
	return dto.ChangelogEntryResponse{
		ID:              e.ChangelogID,
		Seq:             e.Seq,
		BatchID:         e.BatchID,
		LessonID:        e.LessonID,
		Op:              e.Op,
		Before:          rawOrNull(e.Before),
		After:           rawOrNull(e.After),
		Summary:         e.Summary,
		ScheduleVersion: e.ScheduleVersion,
		OperatorID:      e.OperatorID,
		CreatedAt:       e.CreatedAt,
	}
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}

// ────────────────────── Version ──────────────────────

func (s *scheduleService) GetVersion(ctx context.Context, scope model.Scope) (*dto.ScheduleVersionResponse, error) {
	if scope.Type != model.ScopeGroup && scope.Type != model.ScopeTeacher {
		return nil, ErrInvalidScope
	}
	v, err := s.repo.ScheduleVersion.Get(ctx, scope)
	if err != nil {
		return nil, pkgerrors.Persistence(err)
	}
	return &dto.ScheduleVersionResponse{ScopeType: scope.Type, ScopeID: scope.ID, Version: v}, nil
}

// ── 辅助函数 ──

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return unknownName
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// translate 把仓储层的"记录不存在"转成业务错误，其他错误按存储层错误处理
func translate(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return pkgerrors.Persistence(err)
}
