// Package board holds the displayed task list and turns user intents into
// repository calls.
//
// The displayed list only ever changes to the result of a confirmed server
// read. Mutations never edit it in place: a successful one invalidates the
// query cache and reloads, a failed one leaves it untouched and records a
// notice.
package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/apiclient"
	"taskboard/internal/models"
	"taskboard/internal/sorting"
)

// Repository is the write side of the task repository client.
type Repository interface {
	Create(ctx context.Context, title, description string, dueDate *time.Time) (*models.Task, error)
	Complete(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	SummaryURL() string
}

// Cache is the read side: the query cache.
type Cache interface {
	Get(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Refetch(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Invalidate()
}

type Action string

const (
	ActionLoad     Action = "load"
	ActionCreate   Action = "create"
	ActionComplete Action = "complete"
	ActionDelete   Action = "delete"
)

type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

// Notice is a non-blocking message for the user.
type Notice struct {
	Level   Level
	Action  Action
	Message string
	Err     error
	At      time.Time
}

// MutationResult is returned by every mutation intent.
type MutationResult struct {
	Action Action
	ID     int64
	Task   *models.Task
	Err    error
}

func (r MutationResult) OK() bool { return r.Err == nil }

// Snapshot is what a renderer needs for one frame.
type Snapshot struct {
	Filter    models.TaskFilter
	Sort      sorting.Field
	Tasks     []models.Task
	Loading   bool
	Loaded    bool
	LoadErr   error
	UpdatedAt time.Time
	Notices   []Notice
}

const maxNotices = 5

type Board struct {
	repo  Repository
	cache Cache
	log   *zap.Logger
	now   func() time.Time

	mu         sync.Mutex
	filter     models.TaskFilter
	sort       sorting.Field
	tasks      []models.Task
	loaded     bool
	loadErr    error
	updatedAt  time.Time
	issuedSeq  uint64
	appliedSeq uint64
	notices    []Notice
	changed    chan struct{}
}

type Option func(*Board)

func WithLogger(l *zap.Logger) Option {
	return func(b *Board) { b.log = l }
}

func WithSort(field sorting.Field) Option {
	return func(b *Board) { b.sort = field }
}

func WithFilter(filter models.TaskFilter) Option {
	return func(b *Board) { b.filter = filter }
}

func New(repo Repository, cache Cache, opts ...Option) *Board {
	b := &Board{
		repo:    repo,
		cache:   cache,
		log:     zap.NewNop(),
		now:     time.Now,
		sort:    sorting.DefaultField,
		changed: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetFilter replaces the active filter. The displayed list keeps showing the
// previous result until the next Reload resolves.
func (b *Board) SetFilter(filter models.TaskFilter) {
	b.mu.Lock()
	b.filter = filter
	b.mu.Unlock()
}

func (b *Board) Filter() models.TaskFilter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// SetSort changes the ordering. No request is made.
func (b *Board) SetSort(field sorting.Field) {
	b.mu.Lock()
	b.sort = field
	b.mu.Unlock()
}

func (b *Board) SummaryURL() string {
	return b.repo.SummaryURL()
}

// Reload reads the active filter through the cache.
func (b *Board) Reload(ctx context.Context) error {
	return b.load(ctx, false)
}

// Refresh re-reads the active filter from the server, bypassing freshness.
func (b *Board) Refresh(ctx context.Context) error {
	return b.load(ctx, true)
}

func (b *Board) load(ctx context.Context, force bool) error {
	b.mu.Lock()
	b.issuedSeq++
	seq := b.issuedSeq
	filter := b.filter
	b.mu.Unlock()

	var (
		tasks []models.Task
		err   error
	)
	if force {
		tasks, err = b.cache.Refetch(ctx, filter)
	} else {
		tasks, err = b.cache.Get(ctx, filter)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < b.appliedSeq {
		b.log.Debug("[board][load][superseded]", zap.Uint64("seq", seq), zap.Uint64("applied", b.appliedSeq))
		return err
	}
	b.appliedSeq = seq
	if err != nil {
		b.loadErr = err
		b.noticeLocked(LevelError, ActionLoad, "Failed to load tasks", err)
		b.log.Warn("[board][load][err]", zap.Error(err))
		return err
	}
	b.tasks = tasks
	b.loaded = true
	b.loadErr = nil
	b.updatedAt = b.now()
	b.log.Debug("[board][load][ok]", zap.Int("count", len(tasks)))
	return nil
}

// Revalidated applies a collection refreshed in the background. It is
// ignored unless filter is still the active one and no load is outstanding,
// since that load's result will be newer.
func (b *Board) Revalidated(filter models.TaskFilter, tasks []models.Task) {
	b.mu.Lock()
	if b.issuedSeq != b.appliedSeq || !sameFilter(filter, b.filter) {
		b.mu.Unlock()
		return
	}
	b.tasks = tasks
	b.loaded = true
	b.loadErr = nil
	b.updatedAt = b.now()
	b.mu.Unlock()
	b.log.Debug("[board][revalidate][ok]", zap.Int("count", len(tasks)))

	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Changes signals when the displayed list changed outside a Reload or
// mutation call. Pending signals coalesce.
func (b *Board) Changes() <-chan struct{} {
	return b.changed
}

func sameFilter(a, b models.TaskFilter) bool {
	qa, errA := apiclient.EncodeFilter(a)
	qb, errB := apiclient.EncodeFilter(b)
	return errA == nil && errB == nil && qa.Encode() == qb.Encode()
}

// Create validates the form and submits a new task.
func (b *Board) Create(ctx context.Context, title, description string, dueDate *time.Time) MutationResult {
	res := MutationResult{Action: ActionCreate}
	res.Task, res.Err = b.repo.Create(ctx, title, description, dueDate)
	if res.Err == nil && res.Task != nil {
		res.ID = res.Task.ID
	}
	return b.finish(ctx, res, "Task created successfully", "Failed to create task")
}

// Complete marks a task as completed.
func (b *Board) Complete(ctx context.Context, id int64) MutationResult {
	res := MutationResult{Action: ActionComplete, ID: id}
	if t, ok := b.displayed(id); ok && t.IsCompleted() {
		res.Err = &apiclient.ValidationError{Field: "status", Message: fmt.Sprintf("task %d is already completed", id)}
		return b.finish(ctx, res, "", "Failed to complete task")
	}
	res.Err = b.repo.Complete(ctx, id)
	return b.finish(ctx, res, "Task completed successfully", "Failed to complete task")
}

// Delete removes a task.
func (b *Board) Delete(ctx context.Context, id int64) MutationResult {
	res := MutationResult{Action: ActionDelete, ID: id}
	res.Err = b.repo.Delete(ctx, id)
	return b.finish(ctx, res, "Task deleted successfully", "Failed to delete task")
}

func (b *Board) finish(ctx context.Context, res MutationResult, okMsg, failMsg string) MutationResult {
	log := b.log.With(zap.String("action", string(res.Action)), zap.Int64("id", res.ID))
	if res.Err != nil {
		msg := failMsg
		var vErr *apiclient.ValidationError
		if res.Action == ActionCreate && errors.As(res.Err, &vErr) {
			msg = "Please correct the errors in the form"
		}
		b.mu.Lock()
		b.noticeLocked(LevelError, res.Action, msg, res.Err)
		b.mu.Unlock()
		log.Warn("[board][mutate][err]", zap.Error(res.Err))
		return res
	}

	b.cache.Invalidate()
	b.mu.Lock()
	b.noticeLocked(LevelSuccess, res.Action, okMsg, nil)
	b.mu.Unlock()
	log.Info("[board][mutate][ok]")

	// reload failures are recorded as their own notice; the mutation stands
	_ = b.Reload(ctx)
	return res
}

func (b *Board) displayed(id int64) (models.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

func (b *Board) noticeLocked(level Level, action Action, msg string, err error) {
	b.notices = append(b.notices, Notice{Level: level, Action: action, Message: msg, Err: err, At: b.now()})
	if len(b.notices) > maxNotices {
		b.notices = slices.Clone(b.notices[len(b.notices)-maxNotices:])
	}
}

// DrainNotices returns pending notices and clears them.
func (b *Board) DrainNotices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

// Snapshot returns the displayed list ordered by the active sort field.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Filter:    b.filter,
		Sort:      b.sort,
		Tasks:     sorting.Sort(b.tasks, b.sort),
		Loading:   b.issuedSeq != b.appliedSeq,
		Loaded:    b.loaded,
		LoadErr:   b.loadErr,
		UpdatedAt: b.updatedAt,
		Notices:   slices.Clone(b.notices),
	}
}
