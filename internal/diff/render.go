package diff

import (
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/mdtasks/internal/conflict"
	"github.com/nibzard/mdtasks/internal/task"
)

// MaxMessageLen bounds the size of a rendered report.
const MaxMessageLen = 4096

const truncationSuffix = "\n\n... (message truncated)"

// CommitInfo identifies the commit a diff was computed for.
type CommitInfo struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author"`
	URL     string `json:"url"`
}

// ShortSHA returns the first seven characters of the commit id.
func (c CommitInfo) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// Render formats d as a plain-text notification. Sections with nothing in
// them are left out. The result is truncated to MaxMessageLen.
func Render(d TaskDiff, c CommitInfo) string {
	sections := []string{
		"Tasks updated outside mdtasks",
		"",
		"Author: " + c.Author,
		"Commit: " + firstLine(c.Message),
	}
	if c.URL != "" {
		sections = append(sections, fmt.Sprintf("View commit (%s): %s", c.ShortSHA(), c.URL))
	}

	sections = appendChanges(sections, d)

	return Truncate(strings.Join(sections, "\n"), MaxMessageLen)
}

// Report formats the changes in d without a commit header. It returns ""
// when nothing changed.
func Report(d TaskDiff) string {
	return strings.TrimPrefix(strings.Join(appendChanges(nil, d), "\n"), "\n")
}

func appendChanges(sections []string, d TaskDiff) []string {
	if d.Metadata != nil && len(d.Metadata.Changes) > 0 {
		lines := make([]string, 0, len(d.Metadata.Changes))
		for _, ch := range d.Metadata.Changes {
			lines = append(lines, "  • "+ch)
		}
		sections = append(sections, "\nMetadata updated\n"+strings.Join(lines, "\n"))
	}
	sections = appendTaskList(sections, "Completed", d.Completed)
	sections = appendTaskList(sections, "Reopened", d.Uncompleted)
	sections = appendTaskList(sections, "Added", d.Added)
	if len(d.Modified) > 0 {
		lines := make([]string, 0, len(d.Modified))
		for _, m := range d.Modified {
			entry := "  • " + m.After.Name
			for _, ch := range m.Changes {
				entry += "\n    - " + ch
			}
			lines = append(lines, entry)
		}
		sections = append(sections, fmt.Sprintf("\nModified (%d)\n%s", len(d.Modified), strings.Join(lines, "\n")))
	}
	sections = appendTaskList(sections, "Removed", d.Removed)
	return sections
}

// Truncate shortens msg to at most limit bytes, preferring to cut at a line
// break near the end.
func Truncate(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	maxContent := limit - len(truncationSuffix)
	if maxContent <= 0 {
		return msg[:limit]
	}
	cut := msg[:maxContent]
	if i := strings.LastIndex(cut, "\n"); i > maxContent*8/10 {
		cut = cut[:i]
	}
	return cut + truncationSuffix
}

// FormatTask renders a task name with its date and time range, if any.
func FormatTask(t task.Task) string {
	s := t.Name
	if t.Date != "" {
		s += " (" + t.Date + ")"
	}
	if r := TimeRange(t.Time, t.Duration); r != "" {
		s += " [" + r + "]"
	}
	return s
}

// TimeRange renders "09:00-10:30" for a start time and H:MM duration. It
// returns "" when either value is missing or malformed.
func TimeRange(at, duration string) string {
	start, err := time.Parse("15:04", at)
	if err != nil {
		return ""
	}
	d, err := conflict.ParseDuration(duration)
	if err != nil {
		return ""
	}
	return start.Format("15:04") + "-" + start.Add(d).Format("15:04")
}

func appendTaskList(sections []string, title string, tasks []task.Task) []string {
	if len(tasks) == 0 {
		return sections
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, "  • "+FormatTask(t))
	}
	return append(sections, fmt.Sprintf("\n%s (%d)\n%s", title, len(tasks), strings.Join(lines, "\n")))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
