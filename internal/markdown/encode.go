package markdown

import (
	"fmt"
	"strings"

	"github.com/nibzard/mdtasks/internal/task"
)

// DefaultHeading is written when the metadata carries no table header.
const DefaultHeading = "# Task Table"

// Encode serializes tasks and metadata into a task document. Uncompleted
// tasks are written before completed ones. total_tasks counts uncompleted
// tasks only.
func Encode(data task.Data, meta task.Metadata) string {
	var b strings.Builder

	b.WriteString("---\n")
	if meta.LastSynced != "" {
		fmt.Fprintf(&b, "last_synced: %s\n", meta.LastSynced)
	}
	fmt.Fprintf(&b, "total_tasks: %d\n", len(data.Uncompleted))
	if meta.Timezone != "" {
		fmt.Fprintf(&b, "timezone: %s\n", meta.Timezone)
	}
	if len(meta.Tags) > 0 {
		b.WriteString("tags:\n")
		for _, tag := range meta.Tags {
			fmt.Fprintf(&b, "  - %s\n", tag)
		}
	}
	b.WriteString("---\n\n")

	heading := meta.TableHeader
	if heading == "" {
		heading = DefaultHeading
	}
	b.WriteString(heading)
	b.WriteString("\n\n")

	writeHeader(&b)
	for i := range data.Uncompleted {
		writeRow(&b, &data.Uncompleted[i])
	}
	for i := range data.Completed {
		writeRow(&b, &data.Completed[i])
	}
	return b.String()
}

// DefaultContent returns the skeleton document written when the store has
// no task document yet.
func DefaultContent(timezone string) string {
	return Encode(task.Data{}, task.Metadata{Timezone: timezone})
}

func writeHeader(b *strings.Builder) {
	headers := make([]string, len(Columns))
	aligns := make([]string, len(Columns))
	for i, col := range Columns {
		headers[i] = col.Header
		aligns[i] = ":" + strings.Repeat("-", max(len(col.Header)-1, 3))
	}
	writeCells(b, headers)
	writeCells(b, aligns)
}

func writeRow(b *strings.Builder, t *task.Task) {
	cells := make([]string, len(Columns))
	for i, col := range Columns {
		cells[i] = escapeCell(col.get(t))
	}
	writeCells(b, cells)
}

func writeCells(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}

// escapeCell keeps a value on one table row: pipes are escaped and line
// breaks collapse to spaces.
func escapeCell(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.ReplaceAll(v, "|", `\|`)
}
