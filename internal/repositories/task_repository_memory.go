package repositories

import (
	"context"
	"slices"
	"sync"
	"time"

	"taskboard/internal/models"
)

type memoryTaskRepository struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]models.Task
}

// NewMemoryTaskRepository keeps tasks in process memory. Used by tests and
// by the server when database.driver is "memory".
func NewMemoryTaskRepository() TaskRepository {
	return &memoryTaskRepository{nextID: 1, tasks: make(map[int64]models.Task)}
}

func (r *memoryTaskRepository) Store(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.ID = r.nextID
	r.nextID++
	r.tasks[task.ID] = *task
	return nil
}

func (r *memoryTaskRepository) FindByID(_ context.Context, id int64) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &t, nil
}

func (r *memoryTaskRepository) FindAll(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Task{}
	for _, t := range r.tasks {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (r *memoryTaskRepository) Complete(_ context.Context, id int64, at time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if t.Status == models.StatusPending {
		t.Status = models.StatusCompleted
		t.CompletedAt = &at
		r.tasks[id] = t
	}
	return &t, nil
}

func (r *memoryTaskRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}
