package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/repository"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
)

// ════════════════════════════════════════════════════════════
// 内存存储：实现 service 用到的全部 Repository 接口
// WithinTx 在 fn 返回错误时恢复快照，模拟事务回滚
// ════════════════════════════════════════════════════════════

type memStore struct {
	txMu sync.Mutex // 串行化事务
	mu   sync.Mutex // 保护下面的数据

	timeslots map[int]model.Timeslot
	users     map[string]model.User
	groups    map[string]model.StudentGroup
	rooms     map[string]model.Room
	subjects  map[string]model.Subject

	lessons   map[string]model.Lesson
	links     map[string]map[string]bool // lesson_id → group_id 集合
	versions  map[string]int64           // scope key → version
	changelog []model.ChangelogEntry
	nextSeq   int64
	archives  []model.ChangelogArchive

	lockedKeys []string

	// 故障注入
	failChangelog    error
	failLessonUpdate error
	failTimeslots    error

	// 读取课程后模拟其他作用域的事务提交（行版本 +1）的剩余次数
	concurrentEdits int
}

func newMemStore() *memStore {
	return &memStore{
		timeslots: make(map[int]model.Timeslot),
		users:     make(map[string]model.User),
		groups:    make(map[string]model.StudentGroup),
		rooms:     make(map[string]model.Room),
		subjects:  make(map[string]model.Subject),
		lessons:   make(map[string]model.Lesson),
		links:     make(map[string]map[string]bool),
		versions:  make(map[string]int64),
	}
}

// newMockRepository 把内存存储包装成 repository.Repository
func newMockRepository(s *memStore) *repository.Repository {
	repo := &repository.Repository{
		Timeslot:        &memTimeslotRepo{s},
		Lesson:          &memLessonRepo{s},
		Changelog:       &memChangelogRepo{s},
		ScheduleVersion: &memVersionRepo{s},
		User:            &memUserRepo{s},
		Group:           &memGroupRepo{s},
		Room:            &memRoomRepo{s},
		Subject:         &memSubjectRepo{s},
		Archive:         &memArchiveRepo{s},
	}
	repo.Tx = &memTx{s: s, repo: repo}
	return repo
}

// ── 快照 / 回滚 ──

type memSnapshot struct {
	lessons   map[string]model.Lesson
	links     map[string]map[string]bool
	versions  map[string]int64
	changelog []model.ChangelogEntry
	nextSeq   int64
	archives  []model.ChangelogArchive
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		lessons:   make(map[string]model.Lesson, len(s.lessons)),
		links:     make(map[string]map[string]bool, len(s.links)),
		versions:  make(map[string]int64, len(s.versions)),
		changelog: append([]model.ChangelogEntry(nil), s.changelog...),
		nextSeq:   s.nextSeq,
		archives:  append([]model.ChangelogArchive(nil), s.archives...),
	}
	for k, v := range s.lessons {
		snap.lessons[k] = v
	}
	for k, set := range s.links {
		cp := make(map[string]bool, len(set))
		for g := range set {
			cp[g] = true
		}
		snap.links[k] = cp
	}
	for k, v := range s.versions {
		snap.versions[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = snap.lessons
	s.links = snap.links
	s.versions = snap.versions
	s.changelog = snap.changelog
	s.nextSeq = snap.nextSeq
	s.archives = snap.archives
}

type memTx struct {
	s    *memStore
	repo *repository.Repository
}

func (t *memTx) WithinTx(_ context.Context, fn func(tx *repository.Repository) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()
	snap := t.s.snapshot()
	if err := fn(t.repo); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

// ── 测试辅助读取 ──

func (s *memStore) lesson(id string) model.Lesson {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lessons[id]
}

func (s *memStore) version(scope model.Scope) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[scope.Key()]
	return v, ok
}

func (s *memStore) entries() []model.ChangelogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChangelogEntry(nil), s.changelog...)
}

func (s *memStore) groupsOf(lessonID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for g := range s.links[lessonID] {
		ids = append(ids, g)
	}
	sort.Strings(ids)
	return ids
}

func (s *memStore) putLesson(l model.Lesson, groupIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Status == "" {
		l.Status = model.LessonActive
	}
	if l.Version == 0 {
		l.Version = 1
	}
	s.lessons[l.LessonID] = l
	set := make(map[string]bool, len(groupIDs))
	for _, g := range groupIDs {
		set[g] = true
	}
	s.links[l.LessonID] = set
}

// ── Timeslot ──

type memTimeslotRepo struct{ s *memStore }

func (r *memTimeslotRepo) List(_ context.Context) ([]model.Timeslot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTimeslots != nil {
		return nil, r.s.failTimeslots
	}
	var result []model.Timeslot
	for _, t := range r.s.timeslots {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PairNo < result[j].PairNo })
	return result, nil
}

func (r *memTimeslotRepo) GetByPairNo(_ context.Context, pairNo int) (*model.Timeslot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.timeslots[pairNo]; ok {
		return &t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Lesson ──

type memLessonRepo struct{ s *memStore }

func (r *memLessonRepo) Create(_ context.Context, l *model.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lessons[l.LessonID]; ok {
		return errors.New("duplicate key value violates unique constraint \"lessons_pkey\"")
	}
	r.s.lessons[l.LessonID] = *l
	r.s.links[l.LessonID] = make(map[string]bool)
	return nil
}

func (r *memLessonRepo) GetByID(_ context.Context, id string) (*model.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l, ok := r.s.lessons[id]; ok {
		if r.s.concurrentEdits > 0 {
			r.s.concurrentEdits--
			bumped := l
			bumped.Version++
			r.s.lessons[id] = bumped
		}
		return &l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memLessonRepo) Update(_ context.Context, l *model.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failLessonUpdate != nil {
		return r.s.failLessonUpdate
	}
	cur, ok := r.s.lessons[l.LessonID]
	if !ok || cur.Version != l.Version {
		return pkgerrors.ErrOptimisticLock
	}
	l.Version++
	r.s.lessons[l.LessonID] = *l
	return nil
}

func (r *memLessonRepo) ListByGroup(_ context.Context, groupID string, week *model.Week) ([]model.Lesson, error) {
	return r.list(func(l *model.Lesson) bool { return r.s.links[l.LessonID][groupID] }, week), nil
}

func (r *memLessonRepo) ListByTeacher(_ context.Context, teacherUserID string, week *model.Week) ([]model.Lesson, error) {
	return r.list(func(l *model.Lesson) bool { return l.TeacherUserID == teacherUserID }, week), nil
}

func (r *memLessonRepo) list(match func(l *model.Lesson) bool, week *model.Week) []model.Lesson {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Lesson
	for _, l := range r.s.lessons {
		if !l.IsActive() || !match(&l) {
			continue
		}
		if week != nil && !l.ActiveInWeek(week.Monday, week.Sunday) {
			continue
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.PairNo != b.PairNo {
			return a.PairNo < b.PairNo
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.LessonID < b.LessonID
	})
	return result
}

func (r *memLessonRepo) FindRoomConflicts(_ context.Context, l *model.Lesson) ([]model.Lesson, error) {
	return r.conflicts(l, func(o *model.Lesson) bool { return o.RoomID == l.RoomID }), nil
}

func (r *memLessonRepo) FindTeacherConflicts(_ context.Context, l *model.Lesson) ([]model.Lesson, error) {
	return r.conflicts(l, func(o *model.Lesson) bool { return o.TeacherUserID == l.TeacherUserID }), nil
}

func (r *memLessonRepo) conflicts(l *model.Lesson, same func(o *model.Lesson) bool) []model.Lesson {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Lesson
	for _, o := range r.s.lessons {
		if o.LessonID == l.LessonID || !o.IsActive() || o.PairNo != l.PairNo || !same(&o) {
			continue
		}
		if !l.WindowOverlaps(&o) {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LessonID < result[j].LessonID })
	return result
}

func (r *memLessonRepo) ListGroupIDs(_ context.Context, lessonID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for g := range r.s.links[lessonID] {
		ids = append(ids, g)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memLessonRepo) GroupIDsByLessons(_ context.Context, lessonIDs []string) (map[string][]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make(map[string][]string, len(lessonIDs))
	for _, id := range lessonIDs {
		for g := range r.s.links[id] {
			result[id] = append(result[id], g)
		}
		sort.Strings(result[id])
	}
	return result, nil
}

func (r *memLessonRepo) AddGroup(_ context.Context, lessonID, groupID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set, ok := r.s.links[lessonID]
	if !ok {
		set = make(map[string]bool)
		r.s.links[lessonID] = set
	}
	if set[groupID] {
		return errors.New("duplicate key value violates unique constraint \"lesson_groups_pkey\"")
	}
	set[groupID] = true
	return nil
}

func (r *memLessonRepo) RemoveGroup(_ context.Context, lessonID, groupID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.links[lessonID], groupID)
	return nil
}

func (r *memLessonRepo) LockSlots(_ context.Context, keys []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lockedKeys = append(r.s.lockedKeys, keys...)
	return nil
}

// ── Changelog ──

type memChangelogRepo struct{ s *memStore }

func (r *memChangelogRepo) BatchCreate(_ context.Context, entries []model.ChangelogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failChangelog != nil {
		return r.s.failChangelog
	}
	for i := range entries {
		r.s.nextSeq++
		entries[i].Seq = r.s.nextSeq
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = time.Now()
		}
		r.s.changelog = append(r.s.changelog, entries[i])
	}
	return nil
}

func (r *memChangelogRepo) ListByScope(_ context.Context, scope model.Scope, offset, limit int) ([]model.ChangelogEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []model.ChangelogEntry
	for _, e := range r.s.changelog {
		if e.ScopeType == scope.Type && e.ScopeID == scope.ID {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].Seq < matched[j].Seq
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *memChangelogRepo) ListAfterSeq(_ context.Context, afterSeq int64, limit int) ([]model.ChangelogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.ChangelogEntry
	for _, e := range r.s.changelog {
		if e.Seq > afterSeq {
			result = append(result, e)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// ── ScheduleVersion ──

type memVersionRepo struct{ s *memStore }

func (r *memVersionRepo) LockForUpdate(_ context.Context, scope model.Scope) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.versions[scope.Key()]
	if !ok {
		r.s.versions[scope.Key()] = 0
	}
	return v, nil
}

func (r *memVersionRepo) Advance(_ context.Context, scope model.Scope, from int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.versions[scope.Key()] != from {
		return 0, pkgerrors.ErrOptimisticLock
	}
	r.s.versions[scope.Key()] = from + 1
	return from + 1, nil
}

func (r *memVersionRepo) Get(_ context.Context, scope model.Scope) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.versions[scope.Key()], nil
}

// ── 参考数据 ──

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return &u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (r *memUserRepo) ListIDsByGroups(_ context.Context, groupIDs []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(groupIDs))
	for _, g := range groupIDs {
		want[g] = true
	}
	var ids []string
	for _, u := range r.s.users {
		if u.GroupID != nil && want[*u.GroupID] {
			ids = append(ids, u.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memGroupRepo struct{ s *memStore }

func (r *memGroupRepo) GetByID(_ context.Context, id string) (*model.StudentGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g, ok := r.s.groups[id]; ok {
		return &g, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memGroupRepo) ListByIDs(_ context.Context, ids []string) ([]model.StudentGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.StudentGroup
	for _, id := range ids {
		if g, ok := r.s.groups[id]; ok {
			result = append(result, g)
		}
	}
	return result, nil
}

type memRoomRepo struct{ s *memStore }

func (r *memRoomRepo) GetByID(_ context.Context, id string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if room, ok := r.s.rooms[id]; ok {
		return &room, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRoomRepo) ListByIDs(_ context.Context, ids []string) ([]model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Room
	for _, id := range ids {
		if room, ok := r.s.rooms[id]; ok {
			result = append(result, room)
		}
	}
	return result, nil
}

type memSubjectRepo struct{ s *memStore }

func (r *memSubjectRepo) GetByID(_ context.Context, id string) (*model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub, ok := r.s.subjects[id]; ok {
		return &sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSubjectRepo) ListByIDs(_ context.Context, ids []string) ([]model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Subject
	for _, id := range ids {
		if sub, ok := r.s.subjects[id]; ok {
			result = append(result, sub)
		}
	}
	return result, nil
}

// ── Archive ──

type memArchiveRepo struct{ s *memStore }

func (r *memArchiveRepo) LastArchivedSeq(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var last int64
	for _, a := range r.s.archives {
		if a.LastSeq > last {
			last = a.LastSeq
		}
	}
	return last, nil
}

func (r *memArchiveRepo) Create(_ context.Context, a *model.ChangelogArchive) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.archives = append(r.s.archives, *a)
	return nil
}
