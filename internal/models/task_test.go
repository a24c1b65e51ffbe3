package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTaskJSONWireNames(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	task := Task{ID: 7, Title: "Buy milk", Description: "2%", Status: StatusPending, CreatedAt: created}

	raw, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(raw)
	for _, want := range []string{
		`"id":7`, `"title":"Buy milk"`, `"description":"2%"`, `"status":"pending"`,
		`"due_date":null`, `"completed_at":null`, `"created_at":"2025-03-01T09:00:00Z"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}
}

func TestTaskFilterMatches(t *testing.T) {
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	task := Task{Title: "Buy Milk", Status: StatusPending, CreatedAt: created}

	cases := []struct {
		name   string
		filter TaskFilter
		want   bool
	}{
		{"empty", TaskFilter{}, true},
		{"status match", TaskFilter{Status: StatusPtr(StatusPending)}, true},
		{"status mismatch", TaskFilter{Status: StatusPtr(StatusCompleted)}, false},
		{"title case-insensitive", TaskFilter{TitleContains: StringPtr("milk")}, true},
		{"title miss", TaskFilter{TitleContains: StringPtr("bread")}, false},
		{"from inclusive", TaskFilter{FromDate: TimePtr(created)}, true},
		{"to inclusive", TaskFilter{ToDate: TimePtr(created)}, true},
		{"before range", TaskFilter{FromDate: TimePtr(created.Add(time.Second))}, false},
		{"after range", TaskFilter{ToDate: TimePtr(created.Add(-time.Second))}, false},
	}
	for _, tc := range cases {
		if got := tc.filter.Matches(task); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	if !(Task{Status: StatusPending, DueDate: &past}).IsOverdue(now) {
		t.Fatalf("pending task past due should be overdue")
	}
	if (Task{Status: StatusCompleted, DueDate: &past}).IsOverdue(now) {
		t.Fatalf("completed task is never overdue")
	}
	if (Task{Status: StatusPending}).IsOverdue(now) {
		t.Fatalf("task without due date is never overdue")
	}
}
