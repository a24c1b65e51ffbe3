package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskboard/internal/apiclient"
	"taskboard/internal/models"
	"taskboard/internal/sorting"
)

type stubRepo struct {
	createFn   func(ctx context.Context, title, description string, due *time.Time) (*models.Task, error)
	completeFn func(ctx context.Context, id int64) error
	deleteFn   func(ctx context.Context, id int64) error
	completes  atomic.Int32
}

func (r *stubRepo) Create(ctx context.Context, title, description string, due *time.Time) (*models.Task, error) {
	return r.createFn(ctx, title, description, due)
}

func (r *stubRepo) Complete(ctx context.Context, id int64) error {
	r.completes.Add(1)
	return r.completeFn(ctx, id)
}

func (r *stubRepo) Delete(ctx context.Context, id int64) error {
	return r.deleteFn(ctx, id)
}

func (r *stubRepo) SummaryURL() string { return "http://api/api/tasks/summary" }

type stubCache struct {
	getFn       func(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	gets        atomic.Int32
	refetches   atomic.Int32
	invalidates atomic.Int32
}

func (c *stubCache) Get(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	c.gets.Add(1)
	return c.getFn(ctx, filter)
}

func (c *stubCache) Refetch(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	c.refetches.Add(1)
	return c.getFn(ctx, filter)
}

func (c *stubCache) Invalidate() { c.invalidates.Add(1) }

func listOf(tasks ...models.Task) func(context.Context, models.TaskFilter) ([]models.Task, error) {
	return func(context.Context, models.TaskFilter) ([]models.Task, error) { return tasks, nil }
}

var t0 = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func pending(id int64, title string, offset time.Duration) models.Task {
	return models.Task{ID: id, Title: title, Status: models.StatusPending, CreatedAt: t0.Add(offset)}
}

func TestReloadShowsServerResult(t *testing.T) {
	cache := &stubCache{getFn: listOf(pending(1, "a", 0), pending(2, "b", time.Minute))}
	b := New(&stubRepo{}, cache)

	if b.Snapshot().Loaded {
		t.Fatal("fresh board must not be loaded")
	}
	if err := b.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	s := b.Snapshot()
	if !s.Loaded || s.Loading || len(s.Tasks) != 2 {
		t.Fatalf("snapshot = %+v", s)
	}
}

func TestRefreshBypassesCache(t *testing.T) {
	cache := &stubCache{getFn: listOf()}
	b := New(&stubRepo{}, cache)
	_ = b.Refresh(context.Background())
	if cache.refetches.Load() != 1 || cache.gets.Load() != 0 {
		t.Errorf("refetches=%d gets=%d", cache.refetches.Load(), cache.gets.Load())
	}
}

func TestMutationSuccessInvalidatesAndReloads(t *testing.T) {
	cases := []struct {
		name string
		run  func(b *Board) MutationResult
		msg  string
	}{
		{"create", func(b *Board) MutationResult {
			return b.Create(context.Background(), "t", "d", nil)
		}, "Task created successfully"},
		{"complete", func(b *Board) MutationResult { return b.Complete(context.Background(), 1) }, "Task completed successfully"},
		{"delete", func(b *Board) MutationResult { return b.Delete(context.Background(), 1) }, "Task deleted successfully"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{
				createFn: func(context.Context, string, string, *time.Time) (*models.Task, error) {
					task := pending(9, "t", 0)
					return &task, nil
				},
				completeFn: func(context.Context, int64) error { return nil },
				deleteFn:   func(context.Context, int64) error { return nil },
			}
			cache := &stubCache{getFn: listOf(pending(1, "a", 0))}
			b := New(repo, cache)

			res := tc.run(b)
			if !res.OK() {
				t.Fatalf("result = %+v", res)
			}
			if cache.invalidates.Load() != 1 {
				t.Errorf("invalidates = %d, want 1", cache.invalidates.Load())
			}
			if cache.gets.Load() != 1 {
				t.Errorf("reloads = %d, want 1", cache.gets.Load())
			}
			notices := b.DrainNotices()
			if len(notices) != 1 || notices[0].Level != LevelSuccess || notices[0].Message != tc.msg {
				t.Errorf("notices = %+v", notices)
			}
		})
	}
}

func TestMutationFailureKeepsList(t *testing.T) {
	boom := &apiclient.ServerError{Op: "x", StatusCode: 500, Message: "boom"}
	repo := &stubRepo{
		createFn:   func(context.Context, string, string, *time.Time) (*models.Task, error) { return nil, boom },
		completeFn: func(context.Context, int64) error { return boom },
		deleteFn:   func(context.Context, int64) error { return boom },
	}
	cache := &stubCache{getFn: listOf(pending(1, "a", 0), pending(2, "b", time.Minute))}
	b := New(repo, cache)
	ctx := context.Background()
	if err := b.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	before := b.Snapshot().Tasks

	results := []MutationResult{
		b.Create(ctx, "t", "d", nil),
		b.Complete(ctx, 1),
		b.Delete(ctx, 2),
	}
	for _, res := range results {
		if res.OK() || !errors.Is(res.Err, boom) {
			t.Errorf("%s result = %+v", res.Action, res)
		}
	}
	if cache.invalidates.Load() != 0 {
		t.Error("failed mutations must not invalidate")
	}
	after := b.Snapshot().Tasks
	if len(after) != len(before) || after[0].ID != before[0].ID || after[1].ID != before[1].ID {
		t.Errorf("list changed: %+v -> %+v", before, after)
	}

	want := []string{"Failed to create task", "Failed to complete task", "Failed to delete task"}
	notices := b.DrainNotices()
	if len(notices) != len(want) {
		t.Fatalf("notices = %+v", notices)
	}
	for i, n := range notices {
		if n.Level != LevelError || n.Message != want[i] {
			t.Errorf("notice %d = %+v, want %q", i, n, want[i])
		}
	}
}

func TestCreateValidationNotice(t *testing.T) {
	repo := &stubRepo{
		createFn: func(context.Context, string, string, *time.Time) (*models.Task, error) {
			return nil, &apiclient.ValidationError{Field: "title", Message: "please enter the task title"}
		},
	}
	b := New(repo, &stubCache{getFn: listOf()})
	res := b.Create(context.Background(), "", "d", nil)

	var vErr *apiclient.ValidationError
	if !errors.As(res.Err, &vErr) {
		t.Fatalf("err = %v", res.Err)
	}
	notices := b.DrainNotices()
	if len(notices) != 1 || notices[0].Message != "Please correct the errors in the form" {
		t.Errorf("notices = %+v", notices)
	}
}

func TestCompleteAlreadyCompletedRejectedLocally(t *testing.T) {
	done := pending(1, "a", 0)
	done.Status = models.StatusCompleted
	done.CompletedAt = &t0
	repo := &stubRepo{completeFn: func(context.Context, int64) error { return nil }}
	b := New(repo, &stubCache{getFn: listOf(done)})
	_ = b.Reload(context.Background())

	res := b.Complete(context.Background(), 1)
	if res.OK() {
		t.Fatal("completing a completed task must fail")
	}
	if repo.completes.Load() != 0 {
		t.Error("no request expected for a locally rejected completion")
	}
}

func TestLoadErrorKeepsPreviousList(t *testing.T) {
	var fail atomic.Bool
	cache := &stubCache{getFn: func(context.Context, models.TaskFilter) ([]models.Task, error) {
		if fail.Load() {
			return nil, &apiclient.NetworkError{Op: "list", Err: errors.New("connection refused")}
		}
		return []models.Task{pending(1, "a", 0)}, nil
	}}
	b := New(&stubRepo{}, cache)
	ctx := context.Background()
	_ = b.Reload(ctx)

	fail.Store(true)
	if err := b.Reload(ctx); err == nil {
		t.Fatal("expected load error")
	}
	s := b.Snapshot()
	if len(s.Tasks) != 1 || s.LoadErr == nil {
		t.Errorf("snapshot = %+v", s)
	}
	if n := b.DrainNotices(); len(n) != 1 || n[0].Message != "Failed to load tasks" {
		t.Errorf("notices = %+v", n)
	}
}

// An older load that resolves after a newer one must not replace its result.
func TestSupersededLoadDiscarded(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	cache := &stubCache{getFn: func(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
		if calls.Add(1) == 1 {
			<-release
			return []models.Task{pending(1, "old", 0)}, nil
		}
		return []models.Task{pending(2, "new", 0)}, nil
	}}
	b := New(&stubRepo{}, cache)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Reload(ctx)
	}()
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if !b.Snapshot().Loading {
		t.Error("board must report loading while a read is in flight")
	}

	b.SetFilter(models.TaskFilter{TitleContains: models.StringPtr("new")})
	if err := b.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	close(release)
	wg.Wait()

	s := b.Snapshot()
	if len(s.Tasks) != 1 || s.Tasks[0].Title != "new" {
		t.Errorf("tasks = %+v, want the newer result", s.Tasks)
	}
	if s.Loading {
		t.Error("loading must be false once every read resolved")
	}
}

func TestSnapshotSortsWithoutRequest(t *testing.T) {
	due := t0.Add(time.Hour)
	a := pending(1, "a", 0)
	b2 := pending(2, "b", time.Minute)
	b2.DueDate = &due
	cache := &stubCache{getFn: listOf(a, b2)}
	b := New(&stubRepo{}, cache)
	_ = b.Reload(context.Background())

	b.SetSort(sorting.ByDueDate)
	s := b.Snapshot()
	if s.Tasks[0].ID != 2 || s.Sort != sorting.ByDueDate {
		t.Errorf("due_date order = %+v", s.Tasks)
	}
	if cache.gets.Load() != 1 {
		t.Errorf("changing sort must not fetch, gets = %d", cache.gets.Load())
	}
}

func TestNoticesCapped(t *testing.T) {
	repo := &stubRepo{deleteFn: func(context.Context, int64) error { return errors.New("x") }}
	b := New(repo, &stubCache{getFn: listOf()})
	for i := 0; i < maxNotices+3; i++ {
		b.Delete(context.Background(), int64(i))
	}
	if n := len(b.DrainNotices()); n != maxNotices {
		t.Errorf("notices = %d, want %d", n, maxNotices)
	}
	if n := len(b.DrainNotices()); n != 0 {
		t.Errorf("drain must clear, got %d", n)
	}
}

func TestRevalidatedReplacesListForActiveFilter(t *testing.T) {
	status := models.StatusPtr(models.StatusPending)
	cache := &stubCache{getFn: listOf(pending(1, "a", 0))}
	b := New(&stubRepo{}, cache, WithFilter(models.TaskFilter{Status: status}))
	if err := b.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	b.Revalidated(models.TaskFilter{}, []models.Task{pending(7, "other filter", 0)})
	if s := b.Snapshot(); len(s.Tasks) != 1 || s.Tasks[0].ID != 1 {
		t.Fatalf("refresh for another filter applied: %+v", s.Tasks)
	}
	select {
	case <-b.Changes():
		t.Fatal("ignored refresh must not signal a change")
	default:
	}

	b.Revalidated(models.TaskFilter{Status: models.StatusPtr(models.StatusPending)},
		[]models.Task{pending(1, "a", 0), pending(2, "b", time.Minute)})
	if s := b.Snapshot(); len(s.Tasks) != 2 {
		t.Fatalf("tasks = %+v", s.Tasks)
	}
	select {
	case <-b.Changes():
	default:
		t.Fatal("expected a change signal")
	}
}

func TestRevalidatedIgnoredWhileLoading(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	cache := &stubCache{getFn: func(context.Context, models.TaskFilter) ([]models.Task, error) {
		calls.Add(1)
		<-release
		return []models.Task{pending(3, "from load", 0)}, nil
	}}
	b := New(&stubRepo{}, cache)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Reload(context.Background())
	}()
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	b.Revalidated(models.TaskFilter{}, []models.Task{pending(9, "refresh", 0)})
	if s := b.Snapshot(); s.Loaded {
		t.Fatalf("refresh applied over an outstanding load: %+v", s.Tasks)
	}
	close(release)
	<-done
	if s := b.Snapshot(); len(s.Tasks) != 1 || s.Tasks[0].ID != 3 {
		t.Errorf("tasks = %+v", s.Tasks)
	}
}
