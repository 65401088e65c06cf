package markdown

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nibzard/mdtasks/internal/task"
)

var (
	frontmatterKeyValue = regexp.MustCompile(`^(\w+):\s*(.*)$`)
	headingPattern      = regexp.MustCompile(`^#+ `)
	separatorPattern    = regexp.MustCompile(`^\|[\s:-]+\|`)
)

// ErrNoTable is reported as a warning when a document has no task table.
var ErrNoTable = errors.New("no task table found")

// ErrEmptyName marks a row whose task cell is empty.
var ErrEmptyName = errors.New("empty task name")

// RowError describes a table row that could not be turned into a task.
type RowError struct {
	Line int // 1-based line number in the document
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *RowError) Unwrap() error {
	return e.Err
}

// RowResult is the outcome of parsing one table row: a task or an error.
type RowResult struct {
	Line int
	Task task.Task
	Err  error
}

// Result is a decoded document.
type Result struct {
	Metadata   task.Metadata
	Tasks      []task.Task
	Rows       []RowResult
	Warnings   []string
	TableFound bool
}

// Decode parses a task document. It never fails: rows that cannot be parsed
// are skipped and reported in Warnings, and a document without a table
// yields no tasks and an ErrNoTable warning.
func Decode(content string) Result {
	result := Result{Tasks: make([]task.Task, 0)}

	var (
		inFrontmatter bool
		inTable       bool
		headerLine    = -1
		listKey       string
		cols          Layout
	)

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if !inTable && line == "---" {
			inFrontmatter = !inFrontmatter
			listKey = ""
			continue
		}

		if inFrontmatter {
			listKey = decodeFrontmatterLine(line, listKey, &result.Metadata)
			continue
		}

		if !inTable {
			if result.Metadata.TableHeader == "" && headingPattern.MatchString(line) {
				result.Metadata.TableHeader = line
				continue
			}
			if strings.HasPrefix(line, "|") && strings.Contains(line, "Completed") && strings.Contains(line, "Task") {
				inTable = true
				headerLine = i
				result.TableFound = true
				cols = ResolveLayout(splitRow(line))
			}
			continue
		}

		if !strings.HasPrefix(line, "|") {
			break
		}
		if i == headerLine+1 && separatorPattern.MatchString(line) {
			continue
		}

		row := ParseRow(splitRow(line), cols, i+1)
		result.Rows = append(result.Rows, row)
		if row.Err != nil {
			result.Warnings = append(result.Warnings, row.Err.Error())
			continue
		}
		result.Tasks = append(result.Tasks, row.Task)
	}

	if !result.TableFound {
		result.Warnings = append(result.Warnings, ErrNoTable.Error())
	}
	return result
}

// decodeFrontmatterLine applies one frontmatter line to meta and returns the
// list key that subsequent "- item" lines belong to.
func decodeFrontmatterLine(line, listKey string, meta *task.Metadata) string {
	if strings.HasPrefix(line, "- ") || line == "-" {
		if listKey == "tags" {
			if tag := strings.TrimSpace(strings.TrimPrefix(line, "-")); tag != "" {
				meta.Tags = append(meta.Tags, tag)
			}
		}
		return listKey
	}

	m := frontmatterKeyValue.FindStringSubmatch(line)
	if m == nil {
		return listKey
	}
	key, value := m[1], strings.TrimSpace(m[2])
	switch key {
	case "last_synced":
		meta.LastSynced = value
	case "total_tasks":
		if n, err := strconv.Atoi(value); err == nil {
			meta.TotalTasks = &n
		}
	case "timezone":
		meta.Timezone = value
	case "tags":
		meta.Tags = inlineTags(value)
		return "tags"
	}
	return ""
}

// inlineTags parses the value written on the "tags:" line itself, either a
// single scalar or a flow list such as [home, work].
func inlineTags(value string) []string {
	tags := make([]string, 0)
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		value = value[1 : len(value)-1]
	}
	for _, tag := range strings.Split(value, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ParseRow maps the cells of one table row to a task using the column
// Layout resolved from the header row. line is used for error reporting.
func ParseRow(cells []string, cols Layout, line int) RowResult {
	res := RowResult{Line: line}
	if cols.nameIndex < 0 {
		res.Err = &RowError{Line: line, Err: errors.New("table has no Task column")}
		return res
	}
	if cols.nameIndex >= len(cells) {
		res.Err = &RowError{Line: line, Err: fmt.Errorf("row has %d cells, task name is in column %d", len(cells), cols.nameIndex+1)}
		return res
	}

	t := task.Task{Tags: make([]string, 0)}
	for i, cell := range cells {
		col, ok := cols.byIndex[i]
		if !ok || cell == "" {
			continue
		}
		col.set(&t, cell)
	}
	if strings.TrimSpace(t.Name) == "" {
		res.Err = &RowError{Line: line, Err: ErrEmptyName}
		return res
	}
	res.Task = t
	return res
}

// splitRow splits a pipe table row into trimmed cells. Escaped pipes are
// kept as literal characters. The empty artifact before the first pipe is
// dropped, as is the one after a trailing pipe.
func splitRow(line string) []string {
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && line[i+1] == '|' {
			cur.WriteByte('|')
			i++
			continue
		}
		if c == '|' {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	trailing := strings.TrimSpace(cur.String())
	if trailing != "" {
		cells = append(cells, trailing)
	}
	if len(cells) > 0 {
		cells = cells[1:]
	}
	return cells
}
