package markdown

import (
	"strings"

	"github.com/nibzard/mdtasks/internal/task"
)

// Column binds a table header to a task field.
type Column struct {
	Header string
	get    func(t *task.Task) string
	set    func(t *task.Task, cell string)
}

// Columns is the declared table schema, in the order rows are written.
var Columns = []Column{
	{
		Header: "Completed",
		get: func(t *task.Task) string {
			if t.Completed {
				return "[x]"
			}
			return "[ ]"
		},
		set: func(t *task.Task, cell string) {
			t.Completed = strings.Contains(cell, "[x]") || strings.Contains(cell, "[X]")
		},
	},
	{
		Header: "Task",
		get:    func(t *task.Task) string { return t.Name },
		set:    func(t *task.Task, cell string) { t.Name = cell },
	},
	{
		Header: "Date",
		get:    func(t *task.Task) string { return t.Date },
		set:    func(t *task.Task, cell string) { t.Date = cell },
	},
	{
		Header: "Time",
		get:    func(t *task.Task) string { return t.Time },
		set:    func(t *task.Task, cell string) { t.Time = cell },
	},
	{
		Header: "Duration",
		get:    func(t *task.Task) string { return t.Duration },
		set:    func(t *task.Task, cell string) { t.Duration = cell },
	},
	{
		Header: "Priority",
		get:    func(t *task.Task) string { return string(t.Priority) },
		set:    func(t *task.Task, cell string) { t.Priority = task.Priority(strings.ToLower(cell)) },
	},
	{
		Header: "Tags",
		get:    func(t *task.Task) string { return task.FormatTags(t.Tags) },
		set:    func(t *task.Task, cell string) { t.Tags = task.ParseTags(cell) },
	},
	{
		Header: "Description",
		get:    func(t *task.Task) string { return t.Description },
		set:    func(t *task.Task, cell string) { t.Description = cell },
	},
	{
		Header: "Link",
		get:    func(t *task.Task) string { return t.Link },
		set:    func(t *task.Task, cell string) { t.Link = cell },
	},
	{
		Header: "CalendarEventId",
		get:    func(t *task.Task) string { return t.CalendarEventID },
		set:    func(t *task.Task, cell string) { t.CalendarEventID = cell },
	},
	{
		Header: "Log",
		get:    func(t *task.Task) string { return t.Log },
		set:    func(t *task.Task, cell string) { t.Log = cell },
	},
}

// Layout maps table cell positions to columns. It is resolved once per
// table from the header row, so column order in a document may differ from
// the declared schema.
type Layout struct {
	byIndex   map[int]*Column
	nameIndex int
}

// ResolveLayout matches header cells to Columns, ignoring case. Unknown
// headers are ignored.
func ResolveLayout(headers []string) Layout {
	l := Layout{byIndex: make(map[int]*Column), nameIndex: -1}
	for i, h := range headers {
		for c := range Columns {
			if strings.EqualFold(h, Columns[c].Header) {
				l.byIndex[i] = &Columns[c]
				if Columns[c].Header == "Task" {
					l.nameIndex = i
				}
				break
			}
		}
	}
	return l
}
