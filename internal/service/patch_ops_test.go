package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/C4erries/edumax/internal/dto"
	"github.com/C4erries/edumax/internal/model"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
)

func TestDecodePatch_Variants(t *testing.T) {
	tests := []struct {
		name string
		req  dto.PatchRequest
		want patchOp
	}{
		{"reassign_teacher", dto.PatchRequest{Op: OpReassignTeacher, LessonID: sp(lesson1), TeacherUserID: sp(teacher2)}, reassignTeacherOp{LessonID: lesson1, TeacherUserID: teacher2}},
		{"reassign_room", dto.PatchRequest{Op: OpReassignRoom, LessonID: sp(lesson1), RoomID: sp(room2)}, reassignRoomOp{LessonID: lesson1, RoomID: room2}},
		{"reassign_subject", dto.PatchRequest{Op: OpReassignSubject, LessonID: sp(lesson1), SubjectID: sp(subjPhys)}, reassignSubjectOp{LessonID: lesson1, SubjectID: subjPhys}},
		{"reassign_period", dto.PatchRequest{Op: OpReassignPeriod, LessonID: sp(lesson1), PairNo: ip(5)}, reassignPeriodOp{LessonID: lesson1, PairNo: 5}},
		{"add_group", dto.PatchRequest{Op: OpAddGroup, LessonID: sp(lesson1), GroupID: sp(groupB)}, addGroupOp{LessonID: lesson1, GroupID: groupB}},
		{"remove_group", dto.PatchRequest{Op: OpRemoveGroup, LessonID: sp(lesson1), GroupID: sp(groupA)}, removeGroupOp{LessonID: lesson1, GroupID: groupA}},
		{"cancel", dto.PatchRequest{Op: OpCancel, LessonID: sp(lesson1)}, cancelOp{LessonID: lesson1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodePatch(&tt.req, scopeA)
			if err != nil {
				t.Fatalf("decodePatch 失败: %v", err)
			}
			if got != tt.want {
				t.Errorf("期望 %+v，实际 %+v", tt.want, got)
			}
			if got.name() != tt.req.Op {
				t.Errorf("变体名称应与 op 一致: %s", got.name())
			}
		})
	}
}

func TestDecodePatch_CreateDefaults(t *testing.T) {
	req := dto.PatchRequest{Op: OpCreate, RoomID: sp(room1), SubjectID: sp(subjMath), PairNo: ip(2),
		ValidFrom: sp("2026-09-01"), ValidUntil: sp("2026-12-31")}

	op, err := decodePatch(&req, scopeTeacher1)
	if err != nil {
		t.Fatalf("decodePatch 失败: %v", err)
	}
	c := op.(createOp)
	if c.TeacherUserID != teacher1 || len(c.GroupIDs) != 0 {
		t.Errorf("教师作用域应补全教师: %+v", c)
	}
	if c.ValidFrom == nil || c.ValidFrom.Format(model.DateLayout) != "2026-09-01" {
		t.Errorf("valid_from 解析不正确: %v", c.ValidFrom)
	}

	req.TeacherUserID = sp(teacher2)
	op, _ = decodePatch(&req, scopeA)
	c = op.(createOp)
	if len(c.GroupIDs) != 1 || c.GroupIDs[0] != groupA {
		t.Errorf("班级作用域应补全班级: %+v", c.GroupIDs)
	}

	req.GroupIDs = []string{groupB, groupA, groupB}
	op, _ = decodePatch(&req, scopeA)
	if got := op.(createOp).GroupIDs; len(got) != 2 {
		t.Errorf("班级 ID 应去重: %v", got)
	}
}

func TestDecodePatch_Malformed(t *testing.T) {
	tests := []struct {
		name string
		req  dto.PatchRequest
	}{
		{"缺少 op", dto.PatchRequest{LessonID: sp(lesson1)}},
		{"未知 op", dto.PatchRequest{Op: "swap", LessonID: sp(lesson1)}},
		{"缺少 lesson_id", dto.PatchRequest{Op: OpCancel}},
		{"缺少 room_id", dto.PatchRequest{Op: OpReassignRoom, LessonID: sp(lesson1)}},
		{"缺少 pair_no", dto.PatchRequest{Op: OpReassignPeriod, LessonID: sp(lesson1)}},
		{"节次非正数", dto.PatchRequest{Op: OpReassignPeriod, LessonID: sp(lesson1), PairNo: ip(0)}},
		{"非法 UUID", dto.PatchRequest{Op: OpCancel, LessonID: sp("L1")}},
		{"非法日期", dto.PatchRequest{Op: OpCreate, TeacherUserID: sp(teacher1), RoomID: sp(room1), SubjectID: sp(subjMath), PairNo: ip(1), ValidFrom: sp("01.09.2026")}},
		{"日期倒置", dto.PatchRequest{Op: OpCreate, TeacherUserID: sp(teacher1), RoomID: sp(room1), SubjectID: sp(subjMath), PairNo: ip(1), ValidFrom: sp("2026-12-01"), ValidUntil: sp("2026-09-01")}},
		{"教师作用域外缺少教师", dto.PatchRequest{Op: OpCreate, RoomID: sp(room1), SubjectID: sp(subjMath), PairNo: ip(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePatch(&tt.req, scopeA)
			if !errors.Is(err, ErrMalformedPatch) {
				t.Errorf("期望 ErrMalformedPatch，实际: %v", err)
			}
		})
	}
}

func TestPatchErrorCode(t *testing.T) {
	seen := make(map[int]bool)
	for _, pc := range patchCodes {
		if seen[pc.code] {
			t.Errorf("业务码 %d 重复", pc.code)
		}
		seen[pc.code] = true

		wrapped := fmt.Errorf("%w（详情）", pc.err)
		if PatchErrorCode(wrapped) != pc.code {
			t.Errorf("%v 包装后业务码应为 %d", pc.err, pc.code)
		}
		if !isPatchFailure(wrapped) {
			t.Errorf("%v 应属于单条补丁错误", pc.err)
		}
	}

	if PatchErrorCode(errors.New("boom")) != 13000 {
		t.Error("未知错误应返回 13000")
	}
	if isPatchFailure(pkgerrors.Persistence(errors.New("boom"))) {
		t.Error("存储层错误不应按单条补丁处理")
	}
}
