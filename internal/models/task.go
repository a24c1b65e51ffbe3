// internal/models/task.go
package models

import (
	"strings"
	"time"
)

// TaskStatus defines the possible statuses for a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

// Valid reports whether s is one of the wire values.
func (s TaskStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Task represents the structure of a task in the system.
// CompletedAt is set if and only if Status is StatusCompleted.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// IsCompleted reports whether the task reached its terminal status.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// IsOverdue reports whether a pending task is past its due date at now.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Status == StatusPending && t.DueDate != nil && t.DueDate.Before(now)
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskFilter defines the available parameters for filtering tasks.
// A nil field means no constraint on that dimension; a pointer to a zero
// value is a real constraint and is sent as such. Bounds keep nanoseconds on
// the wire so an inclusive bound equal to a created_at still matches it.
type TaskFilter struct {
	Status        *TaskStatus `url:"status,omitempty"`
	FromDate      *time.Time  `url:"from_date,omitempty" layout:"2006-01-02T15:04:05.999999999Z07:00"`
	ToDate        *time.Time  `url:"to_date,omitempty" layout:"2006-01-02T15:04:05.999999999Z07:00"`
	TitleContains *string     `url:"title_contains,omitempty"`
}

// IsZero reports whether the filter constrains nothing.
func (f TaskFilter) IsZero() bool {
	return f.Status == nil && f.FromDate == nil && f.ToDate == nil && f.TitleContains == nil
}

// Matches applies the filter to a single task the way the server does:
// status equality, inclusive created_at bounds and case-insensitive title match.
func (f TaskFilter) Matches(t Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.FromDate != nil && t.CreatedAt.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && t.CreatedAt.After(*f.ToDate) {
		return false
	}
	if f.TitleContains != nil &&
		!strings.Contains(strings.ToLower(t.Title), strings.ToLower(*f.TitleContains)) {
		return false
	}
	return true
}

// StatusPtr, TimePtr and StringPtr build filter fields inline.
func StatusPtr(s TaskStatus) *TaskStatus { return &s }

func TimePtr(t time.Time) *time.Time { return &t }

func StringPtr(s string) *string { return &s }
