// Package sorting orders task collections for display.
//
// It never filters: the collection handed in is exactly what the server
// returned for the active filter.
package sorting

import (
	"fmt"
	"slices"
	"strings"

	"taskboard/internal/models"
)

// Field is the key a task list is ordered by.
type Field string

const (
	ByStatus    Field = "status"
	ByCreatedAt Field = "created_at"
	ByDueDate   Field = "due_date"
)

// DefaultField is used when no sort field was chosen.
const DefaultField = ByCreatedAt

// Fields lists the supported sort keys in the order a picker cycles them.
var Fields = []Field{ByStatus, ByCreatedAt, ByDueDate}

// ParseField validates a user-supplied sort field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return DefaultField, nil
	}
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q (want status, created_at or due_date)", s)
}

// Next returns the field after f in Fields, wrapping around.
func (f Field) Next() Field {
	i := slices.Index(Fields, f)
	return Fields[(i+1)%len(Fields)]
}

// Sort returns a new slice ordered by field. The input is left untouched and
// elements comparing equal keep their input order.
func Sort(tasks []models.Task, field Field) []models.Task {
	out := slices.Clone(tasks)
	if out == nil {
		out = []models.Task{}
	}
	slices.SortStableFunc(out, comparator(field))
	return out
}

func comparator(field Field) func(a, b models.Task) int {
	switch field {
	case ByStatus:
		return func(a, b models.Task) int {
			return statusRank(a.Status) - statusRank(b.Status)
		}
	case ByDueDate:
		return func(a, b models.Task) int {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return 1
			case b.DueDate == nil:
				return -1
			}
			return a.DueDate.Compare(*b.DueDate)
		}
	case ByCreatedAt:
		return func(a, b models.Task) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	// unknown field: keep server order
	return func(models.Task, models.Task) int { return 0 }
}

func statusRank(s models.TaskStatus) int {
	if s == models.StatusPending {
		return 0
	}
	return 1
}
