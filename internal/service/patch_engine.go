package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/C4erries/edumax/internal/dto"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/notify"
	"github.com/C4erries/edumax/internal/repository"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
	"github.com/C4erries/edumax/pkg/lock"
	applogger "github.com/C4erries/edumax/pkg/logger"
	"github.com/C4erries/edumax/pkg/metrics"
)

// ── 补丁批次错误（整批拒绝） ──

var (
	ErrEmptyBatch    = fmt.Errorf("%w: 补丁列表为空", pkgerrors.ErrValidation)
	ErrBatchTooLarge = fmt.Errorf("%w: 补丁数量超过上限", pkgerrors.ErrValidation)
	ErrScopeNotFound = fmt.Errorf("%w: 课表作用域不存在", pkgerrors.ErrNotFound)

	// errNothingApplied 没有任何补丁成功时用于回滚事务，不会返回给调用方
	errNothingApplied = errors.New("no patch applied")
)

const (
	defaultMaxBatchSize = 200
	maxTxAttempts       = 3
)

// PatchEngine 课表补丁引擎：唯一可以修改课程、班级关联、变更日志与课表版本的入口
type PatchEngine interface {
	// Apply 在 scope 下按提交顺序应用一批补丁
	// 单条补丁的业务错误记录在结果中；存储层错误回滚整批并返回 ErrPersistence
	Apply(ctx context.Context, scope model.Scope, operatorID string, patches []dto.PatchRequest) (*dto.PatchBatchResponse, error)
}

// EngineOption 补丁引擎可选配置
type EngineOption func(*patchEngine)

// WithMaxBatchSize 单批补丁数量上限，<=0 时使用默认值
func WithMaxBatchSize(n int) EngineOption {
	return func(e *patchEngine) {
		if n > 0 {
			e.maxBatch = n
		}
	}
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) EngineOption {
	return func(e *patchEngine) { e.now = now }
}

type patchEngine struct {
	repo       *repository.Repository
	slots      TimeslotRegistry
	dispatcher notify.Dispatcher
	locks      *lock.KeyedMutex
	metrics    *metrics.Metrics
	logger     *zap.Logger

	maxBatch int
	now      func() time.Time
}

// NewPatchEngine 创建 PatchEngine 实例
func NewPatchEngine(
	repo *repository.Repository,
	slots TimeslotRegistry,
	dispatcher notify.Dispatcher,
	locks *lock.KeyedMutex,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...EngineOption,
) PatchEngine {
	e := &patchEngine{
		repo:       repo,
		slots:      slots,
		dispatcher: dispatcher,
		locks:      locks,
		metrics:    m,
		logger:     logger,
		maxBatch:   defaultMaxBatchSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// change 一条已应用的补丁
type change struct {
	op       string
	lessonID string
	before   *model.LessonSnapshot
	after    *model.LessonSnapshot
	summary  string
}

// batch 一个补丁批次在事务内的状态
type batch struct {
	tx         *repository.Repository
	scope      model.Scope
	version    int64 // 本批次提交后的版本
	operatorID *string
	names      *nameCache
}

// outcome 一次事务尝试的结果
type outcome struct {
	results []dto.PatchResultItem
	changes []change
	current int64
}

// ════════════════════════════════════════════════════════════
// Apply
// ════════════════════════════════════════════════════════════

func (e *patchEngine) Apply(ctx context.Context, scope model.Scope, operatorID string, patches []dto.PatchRequest) (*dto.PatchBatchResponse, error) {
	if len(patches) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(patches) > e.maxBatch {
		return nil, fmt.Errorf("%w（最多 %d 条）", ErrBatchTooLarge, e.maxBatch)
	}
	if err := e.checkScope(ctx, scope); err != nil {
		return nil, err
	}

	// 同一作用域的批次串行执行；不同作用域互不阻塞
	unlock := e.locks.Lock(scope.Key())
	defer unlock()

	start := time.Now()
	batchID := uuid.NewString()
	log := applogger.FromContext(ctx, e.logger)

	var (
		out *outcome
		err error
	)
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		out, err = e.runBatch(ctx, scope, batchID, operatorID, patches)
		if err == nil || errors.Is(err, errNothingApplied) || !pkgerrors.IsRetryable(err) {
			break
		}
		log.Warn("补丁批次事务冲突，重试",
			zap.String("scope", scope.Key()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	elapsed := time.Since(start)

	if err != nil && !errors.Is(err, errNothingApplied) {
		e.metrics.ObservePatchBatch(scope.Type, "error", elapsed)
		log.Error("补丁批次失败，已回滚",
			zap.String("scope", scope.Key()),
			zap.String("batch_id", batchID),
			zap.Int("patches", len(patches)),
			zap.Error(err),
		)
		return nil, pkgerrors.Persistence(err)
	}

	for _, r := range out.results {
		e.metrics.IncPatchOp(r.Op, r.Success)
	}

	applied := len(out.changes)
	failed := len(patches) - applied
	resp := &dto.PatchBatchResponse{
		Success: applied > 0,
		Results: out.results,
		Applied: applied,
		Failed:  failed,
	}

	if applied == 0 {
		resp.Version = out.current
		resp.Message = "所有补丁均未通过校验，课表未变更"
		e.metrics.ObservePatchBatch(scope.Type, "rejected", elapsed)
		log.Info("补丁批次未应用任何变更",
			zap.String("scope", scope.Key()),
			zap.Int("failed", failed),
		)
		return resp, nil
	}

	resp.BatchID = batchID
	resp.Version = out.current + 1
	if failed == 0 {
		resp.Message = fmt.Sprintf("已应用全部 %d 项补丁", applied)
	} else {
		resp.Message = fmt.Sprintf("已应用 %d 项补丁，%d 项失败", applied, failed)
	}
	e.metrics.ObservePatchBatch(scope.Type, "applied", elapsed)
	log.Info("补丁批次已提交",
		zap.String("scope", scope.Key()),
		zap.String("batch_id", batchID),
		zap.Int64("version", resp.Version),
		zap.Int("applied", applied),
		zap.Int("failed", failed),
	)

	// 已提交的变更不受通知结果影响；请求结束后仍需完成落库
	e.fanout(context.WithoutCancel(ctx), scope, batchID, resp.Version, operatorID, out.changes)
	return resp, nil
}

// runBatch 在单个事务内处理整批补丁
func (e *patchEngine) runBatch(ctx context.Context, scope model.Scope, batchID, operatorID string, patches []dto.PatchRequest) (*outcome, error) {
	out := &outcome{results: make([]dto.PatchResultItem, len(patches))}

	err := e.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		current, err := tx.ScheduleVersion.LockForUpdate(ctx, scope)
		if err != nil {
			return pkgerrors.Persistence(err)
		}
		out.current = current

		b := &batch{
			tx:         tx,
			scope:      scope,
			version:    current + 1,
			operatorID: optionalString(operatorID),
			names:      newNameCache(tx),
		}

		for i := range patches {
			req := &patches[i]
			item := dto.PatchResultItem{Index: i, Op: req.Op, LessonID: deref(req.LessonID)}

			ch, err := e.applyOne(ctx, b, req)
			if err != nil {
				if !isPatchFailure(err) {
					return err
				}
				item.Reason = err.Error()
				item.Code = PatchErrorCode(err)
				out.results[i] = item
				continue
			}

			item.Success = true
			item.LessonID = ch.lessonID
			out.results[i] = item
			out.changes = append(out.changes, *ch)
		}

		if len(out.changes) == 0 {
			return errNothingApplied
		}

		if _, err := tx.ScheduleVersion.Advance(ctx, scope, current); err != nil {
			return pkgerrors.Persistence(err)
		}

		entries, err := b.entries(batchID, out.changes, e.now().UTC())
		if err != nil {
			return pkgerrors.Persistence(err)
		}
		if err := tx.Changelog.BatchCreate(ctx, entries); err != nil {
			return pkgerrors.Persistence(err)
		}
		return nil
	})
	return out, err
}

func (e *patchEngine) checkScope(ctx context.Context, scope model.Scope) error {
	switch scope.Type {
	case model.ScopeGroup:
		if _, err := e.repo.Group.GetByID(ctx, scope.ID); err != nil {
			return translate(err, ErrScopeNotFound)
		}
	case model.ScopeTeacher:
		u, err := e.repo.User.GetByID(ctx, scope.ID)
		if err != nil {
			return translate(err, ErrScopeNotFound)
		}
		if !u.CanTeach() {
			return fmt.Errorf("%w: 该用户不能授课", ErrInvalidScope)
		}
	default:
		return ErrInvalidScope
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// 单条补丁
// ════════════════════════════════════════════════════════════

func (e *patchEngine) applyOne(ctx context.Context, b *batch, req *dto.PatchRequest) (*change, error) {
	op, err := decodePatch(req, b.scope)
	if err != nil {
		return nil, err
	}

	switch o := op.(type) {
	case createOp:
		return e.applyCreate(ctx, b, o)
	case reassignTeacherOp:
		return e.editLesson(ctx, b, o.name(), o.LessonID, func(l *model.Lesson) (*edit, error) {
			if l.TeacherUserID == o.TeacherUserID {
				return nil, ErrNoChange
			}
			teacher, err := b.requireTeacher(ctx, o.TeacherUserID)
			if err != nil {
				return nil, err
			}
			from := b.names.teacher(ctx, l.TeacherUserID)
			l.TeacherUserID = teacher.UserID
			return &edit{
				detail:       fmt.Sprintf("教师 %s → %s", from, teacher.FullName),
				checkTeacher: true,
			}, nil
		})
	case reassignRoomOp:
		return e.editLesson(ctx, b, o.name(), o.LessonID, func(l *model.Lesson) (*edit, error) {
			if l.RoomID == o.RoomID {
				return nil, ErrNoChange
			}
			room, err := b.requireRoom(ctx, o.RoomID)
			if err != nil {
				return nil, err
			}
			from := b.names.room(ctx, l.RoomID)
			l.RoomID = room.RoomID
			return &edit{
				detail:    fmt.Sprintf("%s → %s", from, room.Label()),
				checkRoom: true,
			}, nil
		})
	case reassignSubjectOp:
		return e.editLesson(ctx, b, o.name(), o.LessonID, func(l *model.Lesson) (*edit, error) {
			if l.SubjectID == o.SubjectID {
				return nil, ErrNoChange
			}
			subject, err := b.requireSubject(ctx, o.SubjectID)
			if err != nil {
				return nil, err
			}
			from := b.names.subject(ctx, l.SubjectID)
			l.SubjectID = subject.SubjectID
			return &edit{detail: fmt.Sprintf("科目 %s → %s", from, subject.Title)}, nil
		})
	case reassignPeriodOp:
		return e.editLesson(ctx, b, o.name(), o.LessonID, func(l *model.Lesson) (*edit, error) {
			if l.PairNo == o.PairNo {
				return nil, ErrNoChange
			}
			slot, err := e.slots.Resolve(ctx, o.PairNo)
			if err != nil {
				return nil, err
			}
			from := l.PairNo
			l.PairNo = slot.PairNo
			return &edit{
				detail:       fmt.Sprintf("节次 第%d节 → 第%d节（%s）", from, slot.PairNo, slot.Range()),
				checkRoom:    true,
				checkTeacher: true,
			}, nil
		})
	case addGroupOp:
		return e.applyGroupLink(ctx, b, o.name(), o.LessonID, o.GroupID, true)
	case removeGroupOp:
		return e.applyGroupLink(ctx, b, o.name(), o.LessonID, o.GroupID, false)
	case cancelOp:
		return e.editLesson(ctx, b, o.name(), o.LessonID, func(l *model.Lesson) (*edit, error) {
			l.Status = model.LessonCancelled
			return &edit{detail: "课程已取消"}, nil
		})
	}

	return nil, fmt.Errorf("%w: 未知操作 %q", ErrMalformedPatch, req.Op)
}

// edit 字段修改的结果：摘要与需要进行的冲突检查
type edit struct {
	detail       string
	checkRoom    bool
	checkTeacher bool
}

// editLesson 字段类补丁的公共流程：加载 → 快照 → 修改 → 作用域与冲突检查 → 写入 → 快照
func (e *patchEngine) editLesson(ctx context.Context, b *batch, opName, lessonID string, mutate func(l *model.Lesson) (*edit, error)) (*change, error) {
	lesson, groups, err := b.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	before := lesson.Snapshot(groups)
	label := b.names.lessonLabel(ctx, lesson)

	ed, err := mutate(lesson)
	if err != nil {
		return nil, err
	}
	after := lesson.Snapshot(groups)
	if !b.inScope(&before) && !b.inScope(&after) {
		return nil, ErrLessonOutOfScope
	}
	if err := e.checkConflicts(ctx, b, lesson, ed.checkRoom, ed.checkTeacher); err != nil {
		return nil, err
	}
	if err := b.save(ctx, lesson); err != nil {
		return nil, err
	}

	return &change{
		op:       opName,
		lessonID: lesson.LessonID,
		before:   &before,
		after:    &after,
		summary:  label + "：" + ed.detail,
	}, nil
}

func (e *patchEngine) applyGroupLink(ctx context.Context, b *batch, opName, lessonID, groupID string, link bool) (*change, error) {
	lesson, groups, err := b.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	group, err := b.requireGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	linked := false
	next := make([]string, 0, len(groups)+1)
	for _, g := range groups {
		if g == groupID {
			linked = true
			continue
		}
		next = append(next, g)
	}
	switch {
	case link && linked:
		return nil, ErrGroupAlreadyLinked
	case !link && !linked:
		return nil, ErrGroupNotLinked
	case link:
		next = append(next, groupID)
	}

	before := lesson.Snapshot(groups)
	after := lesson.Snapshot(next)
	if !b.inScope(&before) && !b.inScope(&after) {
		return nil, ErrLessonOutOfScope
	}

	if link {
		err = b.tx.Lesson.AddGroup(ctx, lesson.LessonID, groupID)
	} else {
		err = b.tx.Lesson.RemoveGroup(ctx, lesson.LessonID, groupID)
	}
	if err != nil {
		return nil, pkgerrors.Persistence(err)
	}
	// 关联变化同样记为课程的一次修改，刷新 schedule_version
	if err := b.save(ctx, lesson); err != nil {
		return nil, err
	}

	detail := "新增班级 " + group.Name
	if !link {
		detail = "移除班级 " + group.Name
	}
	return &change{
		op:       opName,
		lessonID: lesson.LessonID,
		before:   &before,
		after:    &after,
		summary:  b.names.lessonLabel(ctx, lesson) + "：" + detail,
	}, nil
}

func (e *patchEngine) applyCreate(ctx context.Context, b *batch, op createOp) (*change, error) {
	teacher, err := b.requireTeacher(ctx, op.TeacherUserID)
	if err != nil {
		return nil, err
	}
	room, err := b.requireRoom(ctx, op.RoomID)
	if err != nil {
		return nil, err
	}
	subject, err := b.requireSubject(ctx, op.SubjectID)
	if err != nil {
		return nil, err
	}
	slot, err := e.slots.Resolve(ctx, op.PairNo)
	if err != nil {
		return nil, err
	}
	for _, gid := range op.GroupIDs {
		if _, err := b.requireGroup(ctx, gid); err != nil {
			return nil, err
		}
	}

	lesson := &model.Lesson{
		LessonID:        uuid.NewString(),
		TeacherUserID:   teacher.UserID,
		RoomID:          room.RoomID,
		SubjectID:       subject.SubjectID,
		PairNo:          slot.PairNo,
		ValidFrom:       op.ValidFrom,
		ValidUntil:      op.ValidUntil,
		Status:          model.LessonActive,
		ScheduleVersion: b.version,
	}
	lesson.Version = 1
	lesson.CreatedBy = b.operatorID
	lesson.UpdatedBy = b.operatorID

	after := lesson.Snapshot(op.GroupIDs)
	if !b.inScope(&after) {
		return nil, ErrLessonOutOfScope
	}
	if err := e.checkConflicts(ctx, b, lesson, true, true); err != nil {
		return nil, err
	}

	if err := b.tx.Lesson.Create(ctx, lesson); err != nil {
		return nil, pkgerrors.Persistence(err)
	}
	for _, gid := range op.GroupIDs {
		if err := b.tx.Lesson.AddGroup(ctx, lesson.LessonID, gid); err != nil {
			return nil, pkgerrors.Persistence(err)
		}
	}

	return &change{
		op:       OpCreate,
		lessonID: lesson.LessonID,
		after:    &after,
		summary: fmt.Sprintf("%s：新增课程，教师 %s，%s",
			b.names.lessonLabel(ctx, lesson), teacher.FullName, room.Label()),
	}, nil
}

// checkConflicts 检查教室 / 教师在同一节次、有效周有交集的其他有效课程
// 先获取 advisory lock，避免其他作用域的批次在检查与写入之间占用同一时段
func (e *patchEngine) checkConflicts(ctx context.Context, b *batch, l *model.Lesson, room, teacher bool) error {
	if !room && !teacher {
		return nil
	}
	var keys []string
	if room {
		keys = append(keys, fmt.Sprintf("room:%s:%d", l.RoomID, l.PairNo))
	}
	if teacher {
		keys = append(keys, fmt.Sprintf("teacher:%s:%d", l.TeacherUserID, l.PairNo))
	}
	if err := b.tx.Lesson.LockSlots(ctx, keys); err != nil {
		return pkgerrors.Persistence(err)
	}

	if room {
		others, err := b.tx.Lesson.FindRoomConflicts(ctx, l)
		if err != nil {
			return pkgerrors.Persistence(err)
		}
		if len(others) > 0 {
			return fmt.Errorf("%w（第%d节，冲突课程 %s）", ErrRoomConflict, l.PairNo, others[0].LessonID)
		}
	}
	if teacher {
		others, err := b.tx.Lesson.FindTeacherConflicts(ctx, l)
		if err != nil {
			return pkgerrors.Persistence(err)
		}
		if len(others) > 0 {
			return fmt.Errorf("%w（第%d节，冲突课程 %s）", ErrTeacherConflict, l.PairNo, others[0].LessonID)
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// 事务内辅助
// ════════════════════════════════════════════════════════════

func (b *batch) loadLesson(ctx context.Context, id string) (*model.Lesson, []string, error) {
	lesson, err := b.tx.Lesson.GetByID(ctx, id)
	if err != nil {
		return nil, nil, translate(err, ErrLessonNotFound)
	}
	if !lesson.IsActive() {
		return nil, nil, ErrLessonCancelled
	}
	groups, err := b.tx.Lesson.ListGroupIDs(ctx, id)
	if err != nil {
		return nil, nil, pkgerrors.Persistence(err)
	}
	return lesson, groups, nil
}

func (b *batch) save(ctx context.Context, l *model.Lesson) error {
	l.ScheduleVersion = b.version
	l.UpdatedBy = b.operatorID
	if err := b.tx.Lesson.Update(ctx, l); err != nil {
		return pkgerrors.Persistence(err)
	}
	return nil
}

// inScope 快照是否属于本批次的作用域
func (b *batch) inScope(s *model.LessonSnapshot) bool {
	switch b.scope.Type {
	case model.ScopeTeacher:
		return s.TeacherUserID == b.scope.ID
	case model.ScopeGroup:
		for _, g := range s.GroupIDs {
			if g == b.scope.ID {
				return true
			}
		}
	}
	return false
}

func (b *batch) requireTeacher(ctx context.Context, id string) (*model.User, error) {
	u, err := b.tx.User.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, ErrTeacherNotFound)
	}
	if !u.CanTeach() {
		return nil, ErrNotTeacher
	}
	b.names.users[u.UserID] = u.FullName
	return u, nil
}

func (b *batch) requireRoom(ctx context.Context, id string) (*model.Room, error) {
	r, err := b.tx.Room.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, ErrRoomNotFound)
	}
	b.names.rooms[r.RoomID] = r.Label()
	return r, nil
}

func (b *batch) requireSubject(ctx context.Context, id string) (*model.Subject, error) {
	s, err := b.tx.Subject.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, ErrSubjectNotFound)
	}
	b.names.subjects[s.SubjectID] = s.Title
	return s, nil
}

func (b *batch) requireGroup(ctx context.Context, id string) (*model.StudentGroup, error) {
	g, err := b.tx.Group.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, ErrGroupNotFound)
	}
	return g, nil
}

// entries 为已应用的补丁生成变更日志，共享批次号与新版本
func (b *batch) entries(batchID string, changes []change, now time.Time) ([]model.ChangelogEntry, error) {
	entries := make([]model.ChangelogEntry, 0, len(changes))
	for i := range changes {
		ch := &changes[i]
		before, err := snapshotJSON(ch.before)
		if err != nil {
			return nil, err
		}
		after, err := snapshotJSON(ch.after)
		if err != nil {
			return nil, err
		}
		entries = append(entries, model.ChangelogEntry{
			ChangelogID:     uuid.NewString(),
			ScopeType:       b.scope.Type,
			ScopeID:         b.scope.ID,
			BatchID:         batchID,
			LessonID:        ch.lessonID,
			Op:              ch.op,
			Before:          before,
			After:           after,
			Summary:         ch.summary,
			ScheduleVersion: b.version,
			OperatorID:      b.operatorID,
			CreatedAt:       now,
		})
	}
	return entries, nil
}

func snapshotJSON(s *model.LessonSnapshot) (datatypes.JSON, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// ════════════════════════════════════════════════════════════
// 通知
// ════════════════════════════════════════════════════════════

// fanout 受影响用户 = 课程修改前后关联班级的成员 ∪ 修改前后的授课教师
func (e *patchEngine) fanout(ctx context.Context, scope model.Scope, batchID string, version int64, operatorID string, changes []change) {
	var groupIDs, teacherIDs, summaries []string
	for i := range changes {
		ch := &changes[i]
		for _, s := range []*model.LessonSnapshot{ch.before, ch.after} {
			if s == nil {
				continue
			}
			teacherIDs = append(teacherIDs, s.TeacherUserID)
			groupIDs = append(groupIDs, s.GroupIDs...)
		}
		summaries = append(summaries, ch.summary)
	}

	members, err := e.repo.User.ListIDsByGroups(ctx, uniqueStrings(groupIDs))
	if err != nil {
		// 班级成员查询失败时仍通知教师
		e.logger.Warn("查询班级成员失败", zap.String("batch_id", batchID), zap.Error(err))
	}
	userIDs := uniqueStrings(append(members, teacherIDs...))

	f := notify.Fanout{
		ScopeType:  scope.Type,
		ScopeID:    scope.ID,
		BatchID:    batchID,
		Version:    version,
		OperatorID: operatorID,
		UserIDs:    userIDs,
		Summaries:  summaries,
	}
	if err := e.dispatcher.Dispatch(ctx, f); err != nil {
		e.logger.Warn("课表变更通知分发失败",
			zap.String("batch_id", batchID),
			zap.Int("users", len(userIDs)),
			zap.Error(err),
		)
	}
}

// ── 名称缓存：用于生成变更摘要，缺失时显示"未知" ──

type nameCache struct {
	tx       *repository.Repository
	users    map[string]string
	rooms    map[string]string
	subjects map[string]string
}

func newNameCache(tx *repository.Repository) *nameCache {
	return &nameCache{
		tx:       tx,
		users:    make(map[string]string),
		rooms:    make(map[string]string),
		subjects: make(map[string]string),
	}
}

func (c *nameCache) teacher(ctx context.Context, id string) string {
	if n, ok := c.users[id]; ok {
		return n
	}
	n := unknownName
	if u, err := c.tx.User.GetByID(ctx, id); err == nil {
		n = u.FullName
	}
	c.users[id] = n
	return n
}

func (c *nameCache) room(ctx context.Context, id string) string {
	if n, ok := c.rooms[id]; ok {
		return n
	}
	n := unknownName
	if r, err := c.tx.Room.GetByID(ctx, id); err == nil {
		n = r.Label()
	}
	c.rooms[id] = n
	return n
}

func (c *nameCache) subject(ctx context.Context, id string) string {
	if n, ok := c.subjects[id]; ok {
		return n
	}
	n := unknownName
	if s, err := c.tx.Subject.GetByID(ctx, id); err == nil {
		n = s.Title
	}
	c.subjects[id] = n
	return n
}

// lessonLabel 摘要中的课程标识，如 "高等数学（第3节）"
func (c *nameCache) lessonLabel(ctx context.Context, l *model.Lesson) string {
	return fmt.Sprintf("%s（第%d节）", c.subject(ctx, l.SubjectID), l.PairNo)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
