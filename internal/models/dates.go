package models

import (
	"fmt"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

// ParseDate accepts RFC3339 or a bare YYYY-MM-DD in loc. A bare day is read as
// its first instant, or its last one when endOfDay is set, so that it can be
// used as an inclusive upper bound.
func ParseDate(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

// ParseDateRange reads "FROM..TO" where either side may be empty. An empty
// string clears both bounds.
func ParseDateRange(s string, loc *time.Location) (from, to *time.Time, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil, nil
	}
	left, right, ok := strings.Cut(s, "..")
	if !ok {
		return nil, nil, fmt.Errorf("invalid range %q (want FROM..TO)", s)
	}
	if left = strings.TrimSpace(left); left != "" {
		t, err := ParseDate(left, loc, false)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if right = strings.TrimSpace(right); right != "" {
		t, err := ParseDate(right, loc, true)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, fmt.Errorf("range start %s is after its end", left)
	}
	return from, to, nil
}
