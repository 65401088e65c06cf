package markdown

import (
	"reflect"
	"strings"
	"testing"

	"github.com/nibzard/mdtasks/internal/task"
)

func TestEncodeRoundTrip(t *testing.T) {
	total := 2
	data := task.Data{
		Uncompleted: []task.Task{
			{
				Name:            "Standup",
				Date:            "2024-06-01",
				Time:            "09:00",
				Duration:        "0:15",
				Priority:        task.PriorityHigh,
				Tags:            []string{"work", "daily"},
				Description:     "sync | notes",
				Link:            "https://example.com/a?b=c",
				CalendarEventID: "evt-1",
			},
			{Name: "Water plants", Tags: []string{}},
		},
		Completed: []task.Task{
			{Name: "File taxes", Completed: true, Tags: []string{}, Log: "completed: 2024-04-15T10:00:00.000Z"},
		},
	}
	meta := task.Metadata{
		LastSynced:  "2024-06-01T09:00:00.000Z",
		TotalTasks:  &total,
		Tags:        []string{"daily", "work"},
		TableHeader: "## Tasks",
		Timezone:    "Europe/Berlin",
	}

	result := Decode(Encode(data, meta))
	if len(result.Warnings) != 0 {
		t.Fatalf("Warnings: got %v", result.Warnings)
	}
	if !reflect.DeepEqual(result.Metadata, meta) {
		t.Errorf("Metadata: got %+v, want %+v", result.Metadata, meta)
	}
	if got, want := task.Partition(result.Tasks), data; !reflect.DeepEqual(got, want) {
		t.Errorf("Data: got %+v, want %+v", got, want)
	}
}

func TestEncodeOrdersUncompletedFirst(t *testing.T) {
	data := task.Data{
		Completed:   []task.Task{{Name: "done", Completed: true}},
		Uncompleted: []task.Task{{Name: "open"}},
	}
	out := Encode(data, task.Metadata{})
	if strings.Index(out, "| open |") > strings.Index(out, "| done |") {
		t.Errorf("uncompleted row written after completed row:\n%s", out)
	}
	if !strings.Contains(out, "total_tasks: 1\n") {
		t.Errorf("total_tasks: want 1 in\n%s", out)
	}
	if !strings.Contains(out, "\n"+DefaultHeading+"\n") {
		t.Errorf("default heading missing:\n%s", out)
	}
	if strings.Contains(out, "last_synced") || strings.Contains(out, "timezone") || strings.Contains(out, "tags:") {
		t.Errorf("unset metadata written:\n%s", out)
	}
}

func TestEncodeEscapesCells(t *testing.T) {
	out := Encode(task.Data{Uncompleted: []task.Task{{Name: "a|b", Description: "line1\nline2"}}}, task.Metadata{})
	if !strings.Contains(out, `| a\|b |`) {
		t.Errorf("pipe not escaped:\n%s", out)
	}
	if !strings.Contains(out, "| line1 line2 |") {
		t.Errorf("newline not collapsed:\n%s", out)
	}
	got := Decode(out).Tasks
	if len(got) != 1 || got[0].Name != "a|b" {
		t.Errorf("decoded: got %+v", got)
	}
}

func TestEncodeHeader(t *testing.T) {
	out := Encode(task.Data{}, task.Metadata{})
	lines := strings.Split(out, "\n")
	var header, align string
	for i, line := range lines {
		if strings.HasPrefix(line, "| Completed") {
			header, align = line, lines[i+1]
			break
		}
	}
	want := "| Completed | Task | Date | Time | Duration | Priority | Tags | Description | Link | CalendarEventId | Log |"
	if header != want {
		t.Errorf("header: got %q, want %q", header, want)
	}
	if !strings.HasPrefix(align, "| :-------- | :--- |") {
		t.Errorf("alignment row: got %q", align)
	}
}

func TestDefaultContent(t *testing.T) {
	content := DefaultContent("UTC")
	result := Decode(content)
	if !result.TableFound {
		t.Fatalf("TableFound: got false for\n%s", content)
	}
	if len(result.Tasks) != 0 {
		t.Errorf("Tasks: got %d, want 0", len(result.Tasks))
	}
	if result.Metadata.Timezone != "UTC" {
		t.Errorf("Timezone: got %q", result.Metadata.Timezone)
	}
	if result.Metadata.TableHeader != DefaultHeading {
		t.Errorf("TableHeader: got %q", result.Metadata.TableHeader)
	}
}
