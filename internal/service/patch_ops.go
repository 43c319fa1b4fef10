package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/C4erries/edumax/internal/dto"
	"github.com/C4erries/edumax/internal/model"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
	"github.com/C4erries/edumax/pkg/validate"
)

// ── 补丁业务错误 ──
// 以下错误均按单条补丁记录，不中断批次

var (
	ErrMalformedPatch     = fmt.Errorf("%w: 补丁格式错误", pkgerrors.ErrValidation)
	ErrLessonNotFound     = fmt.Errorf("%w: 课程不存在", pkgerrors.ErrNotFound)
	ErrLessonCancelled    = fmt.Errorf("%w: 课程已取消", pkgerrors.ErrValidation)
	ErrLessonOutOfScope   = fmt.Errorf("%w: 课程不属于当前课表", pkgerrors.ErrValidation)
	ErrTeacherNotFound    = fmt.Errorf("%w: 教师不存在", pkgerrors.ErrNotFound)
	ErrNotTeacher         = fmt.Errorf("%w: 该用户不能授课", pkgerrors.ErrValidation)
	ErrRoomNotFound       = fmt.Errorf("%w: 教室不存在", pkgerrors.ErrNotFound)
	ErrSubjectNotFound    = fmt.Errorf("%w: 科目不存在", pkgerrors.ErrNotFound)
	ErrGroupNotFound      = fmt.Errorf("%w: 班级不存在", pkgerrors.ErrNotFound)
	ErrNoChange           = fmt.Errorf("%w: 补丁未产生任何变化", pkgerrors.ErrValidation)
	ErrGroupAlreadyLinked = fmt.Errorf("%w: 班级已关联该课程", pkgerrors.ErrValidation)
	ErrGroupNotLinked     = fmt.Errorf("%w: 班级未关联该课程", pkgerrors.ErrValidation)
	ErrRoomConflict       = fmt.Errorf("%w: 教室在该节次已被占用", pkgerrors.ErrValidation)
	ErrTeacherConflict    = fmt.Errorf("%w: 教师在该节次已有课程", pkgerrors.ErrValidation)
)

// 补丁操作
const (
	OpCreate          = "create"
	OpReassignTeacher = "reassign_teacher"
	OpReassignRoom    = "reassign_room"
	OpReassignSubject = "reassign_subject"
	OpReassignPeriod  = "reassign_period"
	OpAddGroup        = "add_group"
	OpRemoveGroup     = "remove_group"
	OpCancel          = "cancel"
)

// patchCodes 单条补丁失败时返回的业务码
var patchCodes = []struct {
	err  error
	code int
}{
	{ErrMalformedPatch, 13001},
	{ErrLessonNotFound, 13002},
	{ErrLessonCancelled, 13003},
	{ErrLessonOutOfScope, 13004},
	{ErrTeacherNotFound, 13005},
	{ErrNotTeacher, 13006},
	{ErrRoomNotFound, 13007},
	{ErrSubjectNotFound, 13008},
	{ErrGroupNotFound, 13009},
	{ErrTimeslotNotFound, 13010},
	{ErrNoChange, 13011},
	{ErrGroupAlreadyLinked, 13012},
	{ErrGroupNotLinked, 13013},
	{ErrRoomConflict, 13014},
	{ErrTeacherConflict, 13015},
}

// PatchErrorCode 返回单条补丁错误对应的业务码，未知错误返回 13000
func PatchErrorCode(err error) int {
	for _, pc := range patchCodes {
		if errors.Is(err, pc.err) {
			return pc.code
		}
	}
	return 13000
}

// isPatchFailure 业务错误（校验失败 / 引用不存在）只影响单条补丁
func isPatchFailure(err error) bool {
	return errors.Is(err, pkgerrors.ErrValidation) || errors.Is(err, pkgerrors.ErrNotFound)
}

// ════════════════════════════════════════════════════════════
// 补丁变体：每种 op 只携带自己需要的字段
// ════════════════════════════════════════════════════════════

type patchOp interface {
	name() string
}

type createOp struct {
	TeacherUserID string
	RoomID        string
	SubjectID     string
	PairNo        int
	GroupIDs      []string
	ValidFrom     *time.Time
	ValidUntil    *time.Time
}

type reassignTeacherOp struct {
	LessonID      string
	TeacherUserID string
}

type reassignRoomOp struct {
	LessonID string
	RoomID   string
}

type reassignSubjectOp struct {
	LessonID  string
	SubjectID string
}

type reassignPeriodOp struct {
	LessonID string
	PairNo   int
}

type addGroupOp struct {
	LessonID string
	GroupID  string
}

type removeGroupOp struct {
	LessonID string
	GroupID  string
}

type cancelOp struct {
	LessonID string
}

func (createOp) name() string          { return OpCreate }
func (reassignTeacherOp) name() string { return OpReassignTeacher }
func (reassignRoomOp) name() string    { return OpReassignRoom }
func (reassignSubjectOp) name() string { return OpReassignSubject }
func (reassignPeriodOp) name() string  { return OpReassignPeriod }
func (addGroupOp) name() string        { return OpAddGroup }
func (removeGroupOp) name() string     { return OpRemoveGroup }
func (cancelOp) name() string          { return OpCancel }

// decodePatch 把请求体中的一条补丁解析为对应变体
// create 未给出教师或班级时，按作用域补全：教师课表默认本人授课，班级课表默认关联该班级
func decodePatch(req *dto.PatchRequest, scope model.Scope) (patchOp, error) {
	if err := req.DecodeError(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}

	switch req.Op {
	case OpCreate:
		op := createOp{
			TeacherUserID: deref(req.TeacherUserID),
			RoomID:        deref(req.RoomID),
			SubjectID:     deref(req.SubjectID),
			GroupIDs:      uniqueStrings(req.GroupIDs),
		}
		if op.TeacherUserID == "" && scope.Type == model.ScopeTeacher {
			op.TeacherUserID = scope.ID
		}
		if len(op.GroupIDs) == 0 && scope.Type == model.ScopeGroup {
			op.GroupIDs = []string{scope.ID}
		}
		if err := requireFields(map[string]bool{
			"teacher_user_id": op.TeacherUserID != "",
			"room_id":         op.RoomID != "",
			"subject_id":      op.SubjectID != "",
			"pair_no":         req.PairNo != nil,
		}); err != nil {
			return nil, err
		}
		op.PairNo = *req.PairNo

		var err error
		if op.ValidFrom, err = parseDate(req.ValidFrom); err != nil {
			return nil, err
		}
		if op.ValidUntil, err = parseDate(req.ValidUntil); err != nil {
			return nil, err
		}
		if op.ValidFrom != nil && op.ValidUntil != nil && op.ValidFrom.After(*op.ValidUntil) {
			return nil, fmt.Errorf("%w: valid_from 不能晚于 valid_until", ErrMalformedPatch)
		}
		return op, nil

	case OpReassignTeacher:
		if err := requireFields(map[string]bool{
			"lesson_id":       req.LessonID != nil,
			"teacher_user_id": req.TeacherUserID != nil,
		}); err != nil {
			return nil, err
		}
		return reassignTeacherOp{LessonID: *req.LessonID, TeacherUserID: *req.TeacherUserID}, nil

	case OpReassignRoom:
		if err := requireFields(map[string]bool{
			"lesson_id": req.LessonID != nil,
			"room_id":   req.RoomID != nil,
		}); err != nil {
			return nil, err
		}
		return reassignRoomOp{LessonID: *req.LessonID, RoomID: *req.RoomID}, nil

	case OpReassignSubject:
		if err := requireFields(map[string]bool{
			"lesson_id":  req.LessonID != nil,
			"subject_id": req.SubjectID != nil,
		}); err != nil {
			return nil, err
		}
		return reassignSubjectOp{LessonID: *req.LessonID, SubjectID: *req.SubjectID}, nil

	case OpReassignPeriod:
		if err := requireFields(map[string]bool{
			"lesson_id": req.LessonID != nil,
			"pair_no":   req.PairNo != nil,
		}); err != nil {
			return nil, err
		}
		return reassignPeriodOp{LessonID: *req.LessonID, PairNo: *req.PairNo}, nil

	case OpAddGroup, OpRemoveGroup:
		if err := requireFields(map[string]bool{
			"lesson_id": req.LessonID != nil,
			"group_id":  req.GroupID != nil,
		}); err != nil {
			return nil, err
		}
		if req.Op == OpAddGroup {
			return addGroupOp{LessonID: *req.LessonID, GroupID: *req.GroupID}, nil
		}
		return removeGroupOp{LessonID: *req.LessonID, GroupID: *req.GroupID}, nil

	case OpCancel:
		if err := requireFields(map[string]bool{"lesson_id": req.LessonID != nil}); err != nil {
			return nil, err
		}
		return cancelOp{LessonID: *req.LessonID}, nil
	}

	return nil, fmt.Errorf("%w: 未知操作 %q", ErrMalformedPatch, req.Op)
}

// requireFields 按字段名排序报告第一个缺失字段，保证错误信息稳定
func requireFields(present map[string]bool) error {
	var missing []string
	for field, ok := range present {
		if !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	missing = uniqueStrings(missing)
	return fmt.Errorf("%w: 缺少字段 %s", ErrMalformedPatch, missing[0])
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(model.DateLayout, *s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: 日期格式应为 YYYY-MM-DD", ErrMalformedPatch)
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
