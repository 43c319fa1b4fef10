package dto

import (
	"encoding/json"
	"time"
)

// ── 课表模块 DTO ──

// ScheduleScopeQuery 作用域参数：group_id 与 teacher_user_id 必须且只能给出一个
type ScheduleScopeQuery struct {
	GroupID       string `form:"group_id"        binding:"required_without=TeacherUserID,excluded_with=TeacherUserID,omitempty,uuid"`
	TeacherUserID string `form:"teacher_user_id" binding:"required_without=GroupID,excluded_with=GroupID,omitempty,uuid"`
}

// ScheduleQuery 课表查询参数
type ScheduleQuery struct {
	ScheduleScopeQuery
	WeekStart string `form:"week_start" binding:"omitempty,datetime=2006-01-02"`
}

// ChangelogQuery 变更日志查询参数
type ChangelogQuery struct {
	ScheduleScopeQuery
	PaginationRequest
}

// PatchScopeQuery PATCH 作用域参数：都不传时使用调用者本人的教师课表
type PatchScopeQuery struct {
	GroupID       string `form:"group_id"        binding:"omitempty,uuid,excluded_with=TeacherUserID"`
	TeacherUserID string `form:"teacher_user_id" binding:"omitempty,uuid,excluded_with=GroupID"`
}

// PatchRequest 单条补丁
// op 决定需要哪些字段；字段校验在补丁引擎中按条进行，单条解析失败不影响整批
type PatchRequest struct {
	Op            string   `json:"op"              validate:"required,patchop"`
	LessonID      *string  `json:"lesson_id"       validate:"omitempty,uuid"`
	TeacherUserID *string  `json:"teacher_user_id" validate:"omitempty,uuid"`
	RoomID        *string  `json:"room_id"         validate:"omitempty,uuid"`
	SubjectID     *string  `json:"subject_id"      validate:"omitempty,uuid"`
	PairNo        *int     `json:"pair_no"         validate:"omitempty,min=1"`
	GroupID       *string  `json:"group_id"        validate:"omitempty,uuid"`
	GroupIDs      []string `json:"group_ids"       validate:"omitempty,dive,uuid"`
	ValidFrom     *string  `json:"valid_from"      validate:"omitempty,datetime=2006-01-02"`
	ValidUntil    *string  `json:"valid_until"     validate:"omitempty,datetime=2006-01-02"`

	decodeErr error
}

// UnmarshalJSON 单条补丁类型不匹配时记录错误而不是让整批解析失败
func (p *PatchRequest) UnmarshalJSON(data []byte) error {
	type alias PatchRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		*p = PatchRequest{decodeErr: err}
		// 尽量保留 op 便于在结果中回显
		var head struct {
			Op string `json:"op"`
		}
		if json.Unmarshal(data, &head) == nil {
			p.Op = head.Op
		}
		return nil
	}
	*p = PatchRequest(a)
	return nil
}

// DecodeError 解析错误（类型不匹配、不是对象等）
func (p *PatchRequest) DecodeError() error { return p.decodeErr }

// ── 响应 ──

// LessonResponse 课表中的一节课
type LessonResponse struct {
	ID      string   `json:"id"`
	Teacher string   `json:"teacher"`
	Room    string   `json:"room"`
	Subject string   `json:"subject"`
	PairNo  int      `json:"pair_no"`
	Groups  []string `json:"groups"`
	Time    *string  `json:"time"` // "HH:MM - HH:MM"，节次未登记时为 null
}

// ScheduleListResponse 课表查询响应
type ScheduleListResponse struct {
	List []LessonResponse `json:"list"`
}

// PatchResultItem 单条补丁结果
type PatchResultItem struct {
	Index    int    `json:"index"`
	Op       string `json:"op"`
	LessonID string `json:"lesson_id,omitempty"`
	Success  bool   `json:"success"`
	Reason   string `json:"reason,omitempty"`
	Code     int    `json:"code,omitempty"`
}

// PatchBatchResponse 补丁批次结果
type PatchBatchResponse struct {
	Success bool              `json:"success"`
	Results []PatchResultItem `json:"results"`
	Message string            `json:"message"`
	BatchID string            `json:"batch_id,omitempty"`
	Version int64             `json:"version"`
	Applied int               `json:"applied"`
	Failed  int               `json:"failed"`
}

// ChangelogEntryResponse 变更日志条目
type ChangelogEntryResponse struct {
	ID              string          `json:"id"`
	Seq             int64           `json:"seq"`
	BatchID         string          `json:"batch_id"`
	LessonID        string          `json:"lesson_id"`
	Op              string          `json:"op"`
	Before          json.RawMessage `json:"before"`
	After           json.RawMessage `json:"after"`
	Summary         string          `json:"summary"`
	ScheduleVersion int64           `json:"schedule_version"`
	OperatorID      *string         `json:"operator_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ScheduleVersionResponse 课表版本响应
type ScheduleVersionResponse struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	Version   int64  `json:"version"`
}
