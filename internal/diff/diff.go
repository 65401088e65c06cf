// Package diff compares two snapshots of a task document and reports what
// changed between them in terms of tasks rather than lines.
//
// The report is meant for people: it never merges or resolves anything.
// Tasks are matched by exact name, so a rename shows up as one removal and
// one addition.
package diff

import (
	"strings"

	"github.com/nibzard/mdtasks/internal/markdown"
	"github.com/nibzard/mdtasks/internal/task"
)

const (
	emptyValue   = "(empty)"
	noTags       = "(none)"
	defaultZone  = "UTC"
	changeArrow  = " → "
	fieldChanged = ": "
)

// Modification is a task present in both snapshots whose fields differ.
type Modification struct {
	Before  task.Task `json:"before"`
	After   task.Task `json:"after"`
	Changes []string  `json:"changes"`
}

// MetadataChange describes frontmatter differences.
type MetadataChange struct {
	Before  task.Metadata `json:"before"`
	After   task.Metadata `json:"after"`
	Changes []string      `json:"changes"`
}

// TaskDiff is the change report between two documents.
type TaskDiff struct {
	Added       []task.Task     `json:"added"`
	Removed     []task.Task     `json:"removed"`
	Modified    []Modification  `json:"modified"`
	Completed   []task.Task     `json:"completed"`
	Uncompleted []task.Task     `json:"uncompleted"`
	Metadata    *MetadataChange `json:"metadata,omitempty"`
}

// Analyze decodes both documents and compares them. Either side may be
// empty, for example when a file is created by the commit being inspected.
func Analyze(before, after string) TaskDiff {
	b := markdown.Decode(before)
	a := markdown.Decode(after)
	return Compare(b.Tasks, a.Tasks, b.Metadata, a.Metadata)
}

// Compare builds a TaskDiff from already decoded tasks and metadata.
func Compare(beforeTasks, afterTasks []task.Task, beforeMeta, afterMeta task.Metadata) TaskDiff {
	d := TaskDiff{
		Added:       make([]task.Task, 0),
		Removed:     make([]task.Task, 0),
		Modified:    make([]Modification, 0),
		Completed:   make([]task.Task, 0),
		Uncompleted: make([]task.Task, 0),
	}

	if changes := metadataChanges(beforeMeta, afterMeta); len(changes) > 0 {
		d.Metadata = &MetadataChange{Before: beforeMeta, After: afterMeta, Changes: changes}
	}

	beforeByName := indexByName(beforeTasks)
	afterByName := indexByName(afterTasks)

	for _, t := range afterTasks {
		if _, ok := beforeByName[t.Name]; !ok {
			d.Added = append(d.Added, t)
		}
	}
	for _, t := range beforeTasks {
		if _, ok := afterByName[t.Name]; !ok {
			d.Removed = append(d.Removed, t)
		}
	}

	for _, after := range afterTasks {
		before, ok := beforeByName[after.Name]
		if !ok {
			continue
		}
		switch {
		case !before.Completed && after.Completed:
			d.Completed = append(d.Completed, after)
		case before.Completed && !after.Completed:
			d.Uncompleted = append(d.Uncompleted, after)
		}
		if changes := taskChanges(before, after); len(changes) > 0 {
			d.Modified = append(d.Modified, Modification{Before: before, After: after, Changes: changes})
		}
	}
	return d
}

// HasChanges reports whether any bucket of d is non-empty.
func HasChanges(d TaskDiff) bool {
	return len(d.Added) > 0 ||
		len(d.Removed) > 0 ||
		len(d.Modified) > 0 ||
		len(d.Completed) > 0 ||
		len(d.Uncompleted) > 0 ||
		(d.Metadata != nil && len(d.Metadata.Changes) > 0)
}

// indexByName keeps the first task for each name.
func indexByName(tasks []task.Task) map[string]task.Task {
	m := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		if _, ok := m[t.Name]; !ok {
			m[t.Name] = t
		}
	}
	return m
}

func taskChanges(before, after task.Task) []string {
	fields := []struct {
		name          string
		before, after string
	}{
		{"date", before.Date, after.Date},
		{"time", before.Time, after.Time},
		{"duration", before.Duration, after.Duration},
		{"priority", string(before.Priority), string(after.Priority)},
		{"description", before.Description, after.Description},
		{"link", before.Link, after.Link},
	}

	var changes []string
	for _, f := range fields {
		if f.before != f.after {
			changes = append(changes, change(f.name, orDefault(f.before, emptyValue), orDefault(f.after, emptyValue)))
		}
	}
	if b, a := joinSorted(before.Tags), joinSorted(after.Tags); b != a {
		changes = append(changes, change("tags", orDefault(b, noTags), orDefault(a, noTags)))
	}
	return changes
}

func metadataChanges(before, after task.Metadata) []string {
	var changes []string
	if before.Timezone != after.Timezone {
		changes = append(changes, change("timezone", orDefault(before.Timezone, defaultZone), orDefault(after.Timezone, defaultZone)))
	}
	if b, a := joinSorted(before.Tags), joinSorted(after.Tags); b != a {
		changes = append(changes, change("allowed tags", orDefault(b, noTags), orDefault(a, noTags)))
	}
	return changes
}

func change(field, before, after string) string {
	return field + fieldChanged + before + changeArrow + after
}

func joinSorted(tags []string) string {
	return strings.Join(task.SortedTags(tags), ", ")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
