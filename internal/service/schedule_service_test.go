package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/C4erries/edumax/internal/dto"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/pkg/lock"
)

// ── 测试辅助 ──

func setupTestScheduleService(logger *zap.Logger) (ScheduleService, *memStore) {
	store := seedStore()
	repo := newMockRepository(store)
	return NewScheduleService(repo, NewTimeslotRegistry(repo, logger), logger), store
}

func date(s string) *time.Time {
	t, _ := time.Parse(model.DateLayout, s)
	return &t
}

// ── GetSchedule 测试 ──

func TestGetSchedule_EmptyGroup(t *testing.T) {
	svc, _ := setupTestScheduleService(zap.NewNop())

	resp, err := svc.GetSchedule(context.Background(), scopeB, nil)
	if err != nil {
		t.Fatalf("GetSchedule 失败: %v", err)
	}
	if resp.List == nil || len(resp.List) != 0 {
		t.Errorf("从未排课的班级应返回空列表，实际=%v", resp.List)
	}
}

func TestGetSchedule_RendersGroupSchedule(t *testing.T) {
	svc, store := setupTestScheduleService(zap.NewNop())
	store.links[lesson1][groupB] = true

	resp, err := svc.GetSchedule(context.Background(), scopeA, nil)
	if err != nil {
		t.Fatalf("GetSchedule 失败: %v", err)
	}
	if len(resp.List) != 2 {
		t.Fatalf("期望 2 节课，实际=%d", len(resp.List))
	}

	first := resp.List[0]
	if first.ID != lesson1 || first.PairNo != 3 {
		t.Errorf("应按节次升序: %+v", resp.List)
	}
	if first.Teacher != "张伟" || first.Room != "教室 101 (主楼)" || first.Subject != "高等数学" {
		t.Errorf("渲染字段不正确: %+v", first)
	}
	if len(first.Groups) != 2 || first.Groups[0] != "计科2301" || first.Groups[1] != "软工2302" {
		t.Errorf("班级名称应排序: %v", first.Groups)
	}
	if first.Time == nil || *first.Time != "12:10 - 13:40" {
		t.Errorf("时间不正确: %v", first.Time)
	}
}

func TestGetSchedule_SamePairOrderedBySubject(t *testing.T) {
	svc, store := setupTestScheduleService(zap.NewNop())
	// 同一节次的两节课（不同教室 / 教师），按科目 ID 排序
	store.putLesson(model.Lesson{LessonID: "f0000000-0000-0000-0000-0000000000ff", TeacherUserID: teacher2, RoomID: room2, SubjectID: subjPhys, PairNo: 3}, groupA)

	resp, err := svc.GetSchedule(context.Background(), scopeA, nil)
	if err != nil {
		t.Fatalf("GetSchedule 失败: %v", err)
	}
	if resp.List[0].Subject != "高等数学" || resp.List[1].Subject != "大学物理" {
		t.Errorf("同节次应按科目排序: %+v", resp.List)
	}
}

func TestGetSchedule_TeacherScope(t *testing.T) {
	svc, _ := setupTestScheduleService(zap.NewNop())

	resp, err := svc.GetSchedule(context.Background(), model.Scope{Type: model.ScopeTeacher, ID: teacher2}, nil)
	if err != nil {
		t.Fatalf("GetSchedule 失败: %v", err)
	}
	if len(resp.List) != 1 || resp.List[0].ID != lesson2 {
		t.Errorf("教师课表只应包含本人课程: %+v", resp.List)
	}
}

func TestGetSchedule_WeekFilter(t *testing.T) {
	svc, store := setupTestScheduleService(zap.NewNop())
	l := store.lesson(lesson2)
	l.ValidFrom = date("2026-09-14")
	store.putLesson(l, groupA)

	// 2026-09-09 是周三，所在周为 09-07 ~ 09-13
	resp, err := svc.GetSchedule(context.Background(), scopeA, date("2026-09-09"))
	if err != nil {
		t.Fatalf("GetSchedule 失败: %v", err)
	}
	if len(resp.List) != 1 || resp.List[0].ID != lesson1 {
		t.Errorf("下周才开始的课程不应出现: %+v", resp.List)
	}

	resp, _ = svc.GetSchedule(context.Background(), scopeA, date("2026-09-20"))
	if len(resp.List) != 2 {
		t.Errorf("周日所在周应包含两节课，实际=%d", len(resp.List))
	}
}

func TestGetSchedule_CancelledLessonHidden(t *testing.T) {
	svc, store := setupTestScheduleService(zap.NewNop())
	l := store.lesson(lesson1)
	l.Status = model.LessonCancelled
	store.putLesson(l, groupA)

	resp, _ := svc.GetSchedule(context.Background(), scopeA, nil)
	if len(resp.List) != 1 {
		t.Errorf("已取消的课程不应出现，实际=%d", len(resp.List))
	}
}

func TestGetSchedule_UnregisteredTimeslotRendersNullTime(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc, store := setupTestScheduleService(zap.New(core))
	l := store.lesson(lesson2)
	l.PairNo = 9
	store.putLesson(l, groupA)

	resp, err := svc.GetSchedule(context.Background(), scopeA, nil)
	if err != nil {
		t.Fatalf("节次未登记不应导致查询失败: %v", err)
	}
	last := resp.List[len(resp.List)-1]
	if last.PairNo != 9 || last.Time != nil {
		t.Errorf("未登记节次的时间应为 null: %+v", last)
	}
	if logs.FilterMessage("课程引用了未登记的节次").Len() != 1 {
		t.Errorf("应记录一条数据完整性告警，实际=%d", logs.Len())
	}
}

func TestGetSchedule_UnknownReferences(t *testing.T) {
	svc, store := setupTestScheduleService(zap.NewNop())
	delete(store.users, teacher1)
	delete(store.rooms, room1)
	delete(store.subjects, subjMath)

	resp, _ := svc.GetSchedule(context.Background(), scopeA, nil)
	first := resp.List[0]
	if first.Teacher != unknownName || first.Room != unknownName || first.Subject != unknownName {
		t.Errorf("缺失的参考数据应显示为未知: %+v", first)
	}
}

func TestGetSchedule_InvalidScope(t *testing.T) {
	svc, _ := setupTestScheduleService(zap.NewNop())

	_, err := svc.GetSchedule(context.Background(), model.Scope{Type: "faculty", ID: groupA}, nil)
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("期望 ErrInvalidScope，实际: %v", err)
	}
}

// ── Changelog / Version 测试 ──

func TestListChangelog_OldestFirstAndPaginated(t *testing.T) {
	store := seedStore()
	repo := newMockRepository(store)
	logger := zap.NewNop()
	slots := NewTimeslotRegistry(repo, logger)
	svc := NewScheduleService(repo, slots, logger)

	clock := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	engine := NewPatchEngine(repo, slots, &recordingDispatcher{}, lock.NewKeyedMutex(), nil, logger,
		WithClock(func() time.Time { clock = clock.Add(time.Minute); return clock }))

	ctx := context.Background()
	for _, room := range []string{room2, room3, room1} {
		if _, err := engine.Apply(ctx, scopeA, teacher1, []dto.PatchRequest{roomPatch(lesson1, room)}); err != nil {
			t.Fatalf("Apply 失败: %v", err)
		}
	}

	list, total, err := svc.ListChangelog(ctx, scopeA, &dto.PaginationRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("ListChangelog 失败: %v", err)
	}
	if total != 3 || len(list) != 2 {
		t.Fatalf("期望 total=3 本页 2 条，实际 total=%d len=%d", total, len(list))
	}
	if list[0].ScheduleVersion != 1 || list[1].ScheduleVersion != 2 {
		t.Errorf("应最早的在前: %d, %d", list[0].ScheduleVersion, list[1].ScheduleVersion)
	}
	if string(list[0].Before) == "null" || string(list[0].After) == "null" {
		t.Error("修改类日志应包含前后快照")
	}

	page2, _, _ := svc.ListChangelog(ctx, scopeA, &dto.PaginationRequest{Page: 2, PageSize: 2})
	if len(page2) != 1 || page2[0].ScheduleVersion != 3 {
		t.Errorf("第二页应只有版本 3: %+v", page2)
	}

	other, total, _ := svc.ListChangelog(ctx, scopeB, &dto.PaginationRequest{})
	if total != 0 || len(other) != 0 {
		t.Error("其他作用域不应看到该日志")
	}
}

func TestGetVersion(t *testing.T) {
	svc, store := setupTestScheduleService(zap.NewNop())

	v, err := svc.GetVersion(context.Background(), scopeA)
	if err != nil {
		t.Fatalf("GetVersion 失败: %v", err)
	}
	if v.Version != 0 || v.ScopeType != model.ScopeGroup || v.ScopeID != groupA {
		t.Errorf("从未修改的作用域版本应为 0: %+v", v)
	}

	store.versions[scopeA.Key()] = 7
	v, _ = svc.GetVersion(context.Background(), scopeA)
	if v.Version != 7 {
		t.Errorf("期望版本=7，实际=%d", v.Version)
	}
}
