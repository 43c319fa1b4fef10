package service

import (
	"context"
	"sync"

	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/notify"
)

// ── 测试数据 ──

const (
	groupA   = "a0000000-0000-0000-0000-000000000001"
	groupB   = "a0000000-0000-0000-0000-000000000002"
	teacher1 = "b0000000-0000-0000-0000-000000000001"
	teacher2 = "b0000000-0000-0000-0000-000000000002"
	student1 = "c0000000-0000-0000-0000-000000000001"
	student2 = "c0000000-0000-0000-0000-000000000002"
	room1    = "d0000000-0000-0000-0000-000000000001"
	room2    = "d0000000-0000-0000-0000-000000000002"
	room3    = "d0000000-0000-0000-0000-000000000003"
	subjMath = "e0000000-0000-0000-0000-000000000001"
	subjPhys = "e0000000-0000-0000-0000-000000000002"
	lesson1  = "f0000000-0000-0000-0000-000000000001"
	lesson2  = "f0000000-0000-0000-0000-000000000002"
	missing  = "90000000-0000-0000-0000-000000000000"
)

var (
	scopeA        = model.Scope{Type: model.ScopeGroup, ID: groupA}
	scopeB        = model.Scope{Type: model.ScopeGroup, ID: groupB}
	scopeTeacher1 = model.Scope{Type: model.ScopeTeacher, ID: teacher1}
)

func sp(s string) *string { return &s }
func ip(i int) *int       { return &i }

// seedStore 节次 1–7；两位教师、两个班级各一名学生；三间教室；两门科目
// lesson1：teacher1 / room1 / 数学 / 第3节 / groupA
// lesson2：teacher2 / room1 / 物理 / 第4节 / groupA
func seedStore() *memStore {
	s := newMemStore()

	for _, t := range []model.Timeslot{
		{PairNo: 1, StartTime: "08:30", EndTime: "10:00"},
		{PairNo: 2, StartTime: "10:10", EndTime: "11:40"},
		{PairNo: 3, StartTime: "12:10", EndTime: "13:40"},
		{PairNo: 4, StartTime: "13:50", EndTime: "15:20"},
		{PairNo: 5, StartTime: "15:30", EndTime: "17:00"},
		{PairNo: 6, StartTime: "17:10", EndTime: "18:40"},
		{PairNo: 7, StartTime: "18:50", EndTime: "20:20"},
	} {
		s.timeslots[t.PairNo] = t
	}

	a, b := groupA, groupB
	s.users[teacher1] = model.User{UserID: teacher1, FullName: "张伟", Role: model.RoleStaff}
	s.users[teacher2] = model.User{UserID: teacher2, FullName: "李娜", Role: model.RoleAdmin}
	s.users[student1] = model.User{UserID: student1, FullName: "王芳", Role: model.RoleStudent, GroupID: &a}
	s.users[student2] = model.User{UserID: student2, FullName: "刘洋", Role: model.RoleStudent, GroupID: &b}

	s.groups[groupA] = model.StudentGroup{GroupID: groupA, Name: "计科2301"}
	s.groups[groupB] = model.StudentGroup{GroupID: groupB, Name: "软工2302"}

	building := "主楼"
	s.rooms[room1] = model.Room{RoomID: room1, Number: "101", Building: &building}
	s.rooms[room2] = model.Room{RoomID: room2, Number: "202", Building: &building}
	s.rooms[room3] = model.Room{RoomID: room3, Number: "实验室"}

	s.subjects[subjMath] = model.Subject{SubjectID: subjMath, Title: "高等数学"}
	s.subjects[subjPhys] = model.Subject{SubjectID: subjPhys, Title: "大学物理"}

	s.putLesson(model.Lesson{LessonID: lesson1, TeacherUserID: teacher1, RoomID: room1, SubjectID: subjMath, PairNo: 3}, groupA)
	s.putLesson(model.Lesson{LessonID: lesson2, TeacherUserID: teacher2, RoomID: room1, SubjectID: subjPhys, PairNo: 4}, groupA)
	return s
}

// ── Mock Dispatcher ──

type recordingDispatcher struct {
	mu      sync.Mutex
	fanouts []notify.Fanout
	err     error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, f notify.Fanout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fanouts = append(d.fanouts, f)
	return d.err
}

func (d *recordingDispatcher) calls() []notify.Fanout {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Fanout(nil), d.fanouts...)
}
