// internal/services/task_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

// ErrInvalidTask wraps every input rejection of the task service.
var ErrInvalidTask = errors.New("invalid task")

// TaskService defines the interface for task-related business logic.
type TaskService interface {
	Create(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	GetAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Complete(ctx context.Context, id int64) (*models.Task, error)
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context) (*models.TaskSummary, error)
}

type taskService struct {
	repo repositories.TaskRepository
	now  func() time.Time
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(repo repositories.TaskRepository) TaskService {
	return &taskService{repo: repo, now: time.Now}
}

func (s *taskService) Create(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	task := &models.Task{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      models.StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if req.DueDate != nil {
		d := req.DueDate.UTC()
		task.DueDate = &d
	}

	if err := s.repo.Store(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *taskService) GetAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, *filter.Status)
	}
	return s.repo.FindAll(ctx, filter)
}

// Complete is idempotent: completing a completed task keeps its original
// completed_at.
func (s *taskService) Complete(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.Complete(ctx, id, s.now().UTC())
}

func (s *taskService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *taskService) Summary(ctx context.Context) (*models.TaskSummary, error) {
	tasks, err := s.repo.FindAll(ctx, models.TaskFilter{})
	if err != nil {
		return nil, err
	}
	summary := models.Summarize(tasks, s.now().UTC())
	return &summary, nil
}
