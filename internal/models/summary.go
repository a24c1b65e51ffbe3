package models

import "time"

// TaskSummary is the content of the downloadable summary report.
type TaskSummary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Pending     int       `json:"pending"`
	Completed   int       `json:"completed"`
	Overdue     int       `json:"overdue"`
	Tasks       []Task    `json:"tasks"`
}

// Summarize counts tasks by status. Overdue is a subset of Pending.
func Summarize(tasks []Task, now time.Time) TaskSummary {
	s := TaskSummary{GeneratedAt: now, Total: len(tasks), Tasks: tasks}
	for _, t := range tasks {
		switch t.Status {
		case StatusCompleted:
			s.Completed++
		case StatusPending:
			s.Pending++
			if t.IsOverdue(now) {
				s.Overdue++
			}
		}
	}
	return s
}
