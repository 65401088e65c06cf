package task

import (
	"strings"
)

// Priority represents a task priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists the accepted priority values from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities for sorting: urgent first, unset last.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Task represents a single row of the task table.
// Empty strings mean the field is absent.
type Task struct {
	Name            string   `json:"name"`
	Completed       bool     `json:"completed"`
	Date            string   `json:"date,omitempty"`
	Time            string   `json:"time,omitempty"`
	Duration        string   `json:"duration,omitempty"`
	Priority        Priority `json:"priority,omitempty"`
	Tags            []string `json:"tags"`
	Description     string   `json:"description,omitempty"`
	Link            string   `json:"link,omitempty"`
	CalendarEventID string   `json:"calendarEventId,omitempty"`
	Log             string   `json:"log,omitempty"`
}

// IsZero returns true if the task has no name.
func (t *Task) IsZero() bool {
	return strings.TrimSpace(t.Name) == ""
}

// Scheduled reports whether the task has a full time window.
func (t *Task) Scheduled() bool {
	return t.Date != "" && t.Time != "" && t.Duration != ""
}

// HasTag reports whether the task carries tag (case-insensitive).
func (t *Task) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
	for _, existing := range t.Tags {
		if strings.ToLower(existing) == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy of the task that shares no slices with t.
func (t Task) Clone() Task {
	if t.Tags != nil {
		tags := make([]string, len(t.Tags))
		copy(tags, t.Tags)
		t.Tags = tags
	}
	return t
}

// Data holds the tasks of one document split by completion state.
// Order within Uncompleted is the display order.
type Data struct {
	Completed   []Task `json:"completed"`
	Uncompleted []Task `json:"uncompleted"`
}

// Partition splits tasks by their Completed flag, preserving order.
func Partition(tasks []Task) Data {
	data := Data{
		Completed:   make([]Task, 0),
		Uncompleted: make([]Task, 0),
	}
	for _, t := range tasks {
		if t.Completed {
			data.Completed = append(data.Completed, t)
		} else {
			data.Uncompleted = append(data.Uncompleted, t)
		}
	}
	return data
}

// All returns uncompleted tasks followed by completed ones.
func (d Data) All() []Task {
	all := make([]Task, 0, len(d.Uncompleted)+len(d.Completed))
	all = append(all, d.Uncompleted...)
	all = append(all, d.Completed...)
	return all
}

// Metadata is the document-level state kept in the frontmatter.
type Metadata struct {
	LastSynced  string   `json:"last_synced,omitempty"`
	TotalTasks  *int     `json:"total_tasks,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	TableHeader string   `json:"table_header,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
}
