package task

import (
	"fmt"
	"sort"
	"strings"
)

// FindIndex returns the index of the task named name (case-insensitive,
// surrounding whitespace ignored), or -1 if none matches.
func FindIndex(tasks []Task, name string) int {
	name = strings.TrimSpace(name)
	for i := range tasks {
		if strings.EqualFold(strings.TrimSpace(tasks[i].Name), name) {
			return i
		}
	}
	return -1
}

// Remove returns tasks without the element at index i.
func Remove(tasks []Task, i int) []Task {
	out := make([]Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	return append(out, tasks[i+1:]...)
}

// FilterByTags returns the tasks that carry every tag in tags.
func FilterByTags(tasks []Task, tags []string) []Task {
	out := make([]Task, 0)
	for _, t := range tasks {
		matches := true
		for _, tag := range tags {
			if !t.HasTag(tag) {
				matches = false
				break
			}
		}
		if matches {
			out = append(out, t)
		}
	}
	return out
}

// DueOn returns the tasks whose date equals day (YYYY-MM-DD).
func DueOn(tasks []Task, day string) []Task {
	out := make([]Task, 0)
	for _, t := range tasks {
		if t.Date == day {
			out = append(out, t)
		}
	}
	return out
}

// SortKey selects an ordering for SortTasks.
type SortKey string

const (
	SortByPriority SortKey = "priority"
	SortByTime     SortKey = "time"
)

// ParseSortKey parses a sort key name.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByPriority:
		return SortByPriority, nil
	case SortByTime:
		return SortByTime, nil
	}
	return "", fmt.Errorf("unknown sort key %q, must be one of: priority, time", s)
}

// SortTasks returns a stably sorted copy of tasks.
//
// By priority: urgent, high, medium, low, then unset.
// By time: by date then time; tasks missing either value sort after those
// that have it.
func SortTasks(tasks []Task, key SortKey) []Task {
	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	switch key {
	case SortByPriority:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
		})
	case SortByTime:
		sort.SliceStable(sorted, func(i, j int) bool {
			return lessByTime(sorted[i], sorted[j])
		})
	}
	return sorted
}

func lessByTime(a, b Task) bool {
	if a.Date == "" || b.Date == "" {
		return a.Date != "" && b.Date == ""
	}
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Time == "" || b.Time == "" {
		return a.Time != "" && b.Time == ""
	}
	return a.Time < b.Time
}
