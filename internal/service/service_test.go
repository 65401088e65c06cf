package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/nibzard/mdtasks/internal/cas"
	"github.com/nibzard/mdtasks/internal/markdown"
	"github.com/nibzard/mdtasks/internal/persist"
	"github.com/nibzard/mdtasks/internal/session"
	"github.com/nibzard/mdtasks/internal/store"
	"github.com/nibzard/mdtasks/internal/task"
)

var (
	testID   = store.Identity{Path: "tasks.md", Ref: "main"}
	fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
)

// newTestService returns a service over a memory store seeded with data.
// A nil data leaves the document missing.
func newTestService(t *testing.T, data *task.Data, meta task.Metadata) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	if data != nil {
		if _, err := mem.Put(context.Background(), testID, markdown.Encode(*data, meta), "", "seed"); err != nil {
			t.Fatal(err)
		}
	}
	policy := cas.DefaultPolicy(store.IsConflict)
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	coord := persist.New(mem, testID,
		persist.WithPolicy(policy),
		persist.WithClock(func() time.Time { return fixedNow }),
		persist.WithDefaultTimezone("UTC"),
	)
	return New(coord, WithClock(func() time.Time { return fixedNow })), mem
}

func sampleData() *task.Data {
	return &task.Data{
		Uncompleted: []task.Task{
			{Name: "Standup", Date: "2024-06-01", Time: "09:00", Duration: "1:00", Priority: task.PriorityHigh, Tags: []string{"work"}},
			{Name: "Groceries", Priority: task.PriorityLow, Tags: []string{"home"}},
			{Name: "Gym", Date: "2024-06-02", Time: "18:00", Duration: "1:30", Tags: []string{"sports", "home"}},
		},
		Completed: []task.Task{
			{Name: "Old report", Completed: true, Tags: []string{"work"}},
		},
	}
}

var utc = task.Metadata{Timezone: "UTC"}

func names(tasks []task.Task) string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Name)
	}
	return strings.Join(out, ",")
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t, sampleData(), utc)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"uncompleted by default", Filter{}, "Standup,Groceries,Gym"},
		{"all", Filter{All: true}, "Standup,Groceries,Gym,Old report"},
		{"one tag", Filter{Tags: []string{"#home"}}, "Groceries,Gym"},
		{"every tag", Filter{Tags: []string{"home", "SPORTS"}}, "Gym"},
		{"all with tag", Filter{All: true, Tags: []string{"work"}}, "Standup,Old report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if names(got) != tt.want {
				t.Errorf("List: got %q, want %q", names(got), tt.want)
			}
		})
	}
}

func TestListCreatesMissingDocument(t *testing.T) {
	svc, mem := newTestService(t, nil, task.Metadata{})
	got, err := svc.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("List: got %d tasks, want 0", len(got))
	}
	if commits := mem.Commits(); len(commits) != 1 || commits[0].Message != persist.InitMessage {
		t.Errorf("expected init commit, got %+v", commits)
	}
}

func TestToday(t *testing.T) {
	data := &task.Data{Uncompleted: []task.Task{
		{Name: "Late", Date: "2024-06-01", Time: "20:00", Duration: "1:00"},
		{Name: "Tomorrow", Date: "2024-06-02"},
		{Name: "Early", Date: "2024-06-01", Time: "08:00", Duration: "0:30"},
		{Name: "Undated"},
	}}
	ctx := context.Background()

	t.Run("uses document timezone", func(t *testing.T) {
		svc, _ := newTestService(t, data, task.Metadata{Timezone: "America/New_York"})
		// 02:00 UTC on June 2nd is still June 1st in New York.
		got, err := svc.Today(ctx, time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatal(err)
		}
		if names(got) != "Early,Late" {
			t.Errorf("Today: got %q, want Early,Late", names(got))
		}
	})

	t.Run("requires timezone", func(t *testing.T) {
		svc, _ := newTestService(t, data, task.Metadata{})
		_, err := svc.Today(ctx, fixedNow)
		if !errors.Is(err, persist.ErrNoTimezone) {
			t.Errorf("expected ErrNoTimezone, got %v", err)
		}
	})
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and normalizes", func(t *testing.T) {
		svc, mem := newTestService(t, sampleData(), utc)
		got, err := svc.Add(ctx, task.Task{Name: "  Call mom ", Date: "2024-06-01", Time: "12:00", Tags: []string{"#Family"}, Priority: "HIGH"})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if got.Name != "Call mom" || got.Duration != "1:00" || got.Priority != task.PriorityHigh {
			t.Errorf("Add: got %+v", got)
		}
		if len(got.Tags) != 1 || got.Tags[0] != "family" {
			t.Errorf("tags: got %v, want [family]", got.Tags)
		}
		list, _ := svc.List(ctx, Filter{})
		if names(list) != "Standup,Groceries,Gym,Call mom" {
			t.Errorf("List after Add: got %q", names(list))
		}
		commits := mem.Commits()
		if last := commits[len(commits)-1].Message; !strings.HasPrefix(last, persist.UpdateMessagePrefix) {
			t.Errorf("commit message: got %q", last)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		_, err := svc.Add(ctx, task.Task{Name: "standup"})
		if !errors.Is(err, ErrDuplicateName) {
			t.Errorf("expected ErrDuplicateName, got %v", err)
		}
	})

	t.Run("completed name may be reused", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		if _, err := svc.Add(ctx, task.Task{Name: "Old report"}); err != nil {
			t.Errorf("Add: %v", err)
		}
	})

	t.Run("time conflict", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		_, err := svc.Add(ctx, task.Task{Name: "Overlap", Date: "2024-06-01", Time: "09:30"})
		if !errors.Is(err, ErrTimeConflict) {
			t.Fatalf("expected ErrTimeConflict, got %v", err)
		}
		want := `Time conflict with existing task: "Standup" (Date: 2024-06-01, Time: 09:00, Duration: 1:00)`
		if err.Error() != want {
			t.Errorf("message: got %q, want %q", err.Error(), want)
		}
	})

	t.Run("adjacent window is fine", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		if _, err := svc.Add(ctx, task.Task{Name: "After standup", Date: "2024-06-01", Time: "10:00", Duration: "0:15"}); err != nil {
			t.Errorf("Add: %v", err)
		}
	})

	t.Run("tag with whitespace is rejected", func(t *testing.T) {
		svc, mem := newTestService(t, sampleData(), utc)
		_, err := svc.Add(ctx, task.Task{Name: "Plan", Tags: []string{"deep work", "Home"}})
		var verrs *task.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected *task.ValidationErrors, got %v", err)
		}
		if len(mem.Commits()) != 1 {
			t.Errorf("expected no write, got %d commits", len(mem.Commits()))
		}
	})

	t.Run("stored task reads back unchanged", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		added, err := svc.Add(ctx, task.Task{
			Name: "Plan", Tags: []string{"#Deep-Work", "home"},
			Description: "  quarterly goals ", Link: " https://example.com/plan ",
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		list, err := svc.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		idx := task.FindIndex(list, "Plan")
		if idx < 0 {
			t.Fatalf("List: Plan missing from %q", names(list))
		}
		stored := list[idx]
		if got, want := strings.Join(stored.Tags, ","), strings.Join(added.Tags, ","); got != want {
			t.Errorf("tags: got %q, want %q", got, want)
		}
		if stored.Description != added.Description || added.Description != "quarterly goals" {
			t.Errorf("description: got %q (added %q), want %q", stored.Description, added.Description, "quarterly goals")
		}
		if stored.Link != added.Link || added.Link != "https://example.com/plan" {
			t.Errorf("link: got %q (added %q), want %q", stored.Link, added.Link, "https://example.com/plan")
		}
	})

	t.Run("invalid field", func(t *testing.T) {
		svc, mem := newTestService(t, sampleData(), utc)
		_, err := svc.Add(ctx, task.Task{Name: "Bad", Date: "2024/06/01"})
		var verrs *task.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected *task.ValidationErrors, got %v", err)
		}
		if len(mem.Commits()) != 1 {
			t.Errorf("expected no write, got %d commits", len(mem.Commits()))
		}
	})
}

func TestComplete(t *testing.T) {
	svc, _ := newTestService(t, sampleData(), utc)
	ctx := context.Background()

	done, err := svc.Complete(ctx, "groceries")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done.Completed || done.Log != "completed: 2024-06-01T09:30:00.000Z" {
		t.Errorf("Complete: got %+v", done)
	}

	all, _ := svc.List(ctx, Filter{All: true})
	if names(all) != "Standup,Gym,Old report,Groceries" {
		t.Errorf("List after Complete: got %q", names(all))
	}

	if _, err := svc.Complete(ctx, "Old report"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("completing a completed task: expected ErrTaskNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, sampleData(), utc)

	if _, err := svc.Remove(ctx, "Gym"); err != nil {
		t.Fatalf("Remove(uncompleted): %v", err)
	}
	if _, err := svc.Remove(ctx, "old report"); err != nil {
		t.Fatalf("Remove(completed): %v", err)
	}
	all, _ := svc.List(ctx, Filter{All: true})
	if names(all) != "Standup,Groceries" {
		t.Errorf("List after Remove: got %q", names(all))
	}
	if _, err := svc.Remove(ctx, "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestClearCompleted(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t, sampleData(), utc)

	n, err := svc.ClearCompleted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ClearCompleted: got (%d, %v), want 1", n, err)
	}
	writes := len(mem.Commits())
	n, err = svc.ClearCompleted(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second ClearCompleted: got (%d, %v), want 0", n, err)
	}
	if len(mem.Commits()) != writes {
		t.Error("expected no write when nothing is cleared")
	}
}

func TestSort(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, sampleData(), utc)

	got, err := svc.Sort(ctx, task.SortByTime)
	if err != nil {
		t.Fatal(err)
	}
	if names(got) != "Standup,Gym,Groceries" {
		t.Errorf("Sort(time): got %q", names(got))
	}
	got, _ = svc.Sort(ctx, task.SortByPriority)
	if names(got) != "Standup,Groceries,Gym" {
		t.Errorf("Sort(priority): got %q", names(got))
	}
	persisted, _ := svc.List(ctx, Filter{})
	if names(persisted) != names(got) {
		t.Errorf("persisted order: got %q, want %q", names(persisted), names(got))
	}
}

func TestSetTimezone(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, sampleData(), task.Metadata{})

	if err := svc.SetTimezone(ctx, "Mars/Olympus"); err == nil {
		t.Error("expected error for unknown timezone")
	}
	if err := svc.SetTimezone(ctx, "Europe/Berlin"); err != nil {
		t.Fatalf("SetTimezone: %v", err)
	}
	snap, _ := svc.Snapshot(ctx)
	if snap.Metadata.Timezone != "Europe/Berlin" {
		t.Errorf("timezone: got %q", snap.Metadata.Timezone)
	}
}

func TestSaveRequiresTimezone(t *testing.T) {
	svc, _ := newTestService(t, sampleData(), task.Metadata{})
	_, err := svc.Add(context.Background(), task.Task{Name: "x"})
	if !errors.Is(err, persist.ErrNoTimezone) {
		t.Errorf("expected ErrNoTimezone, got %v", err)
	}
}

func TestEditFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("reschedule clears dependents", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		id, err := svc.NewSession(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.BeginEdit(ctx, id, "gym"); err != nil {
			t.Fatalf("BeginEdit: %v", err)
		}
		if err := svc.SelectField(ctx, id, "Date"); err != nil {
			t.Fatalf("SelectField: %v", err)
		}
		got, err := svc.ApplyEdit(ctx, id, "")
		if err != nil {
			t.Fatalf("ApplyEdit: %v", err)
		}
		if got.Date != "" || got.Time != "" || got.Duration != "" {
			t.Errorf("cleared date: got %+v", got)
		}
		if _, err := svc.ApplyEdit(ctx, id, "x"); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("session after success: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("clearing time clears duration", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		svc.BeginEdit(ctx, "s", "Standup")
		svc.SelectField(ctx, "s", "time")
		got, err := svc.ApplyEdit(ctx, "s", " ")
		if err != nil {
			t.Fatal(err)
		}
		if got.Time != "" || got.Duration != "" || got.Date != "2024-06-01" {
			t.Errorf("cleared time: got %+v", got)
		}
	})

	t.Run("time needs a date", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		svc.BeginEdit(ctx, "s", "Groceries")
		if err := svc.SelectField(ctx, "s", "time"); !errors.Is(err, ErrNeedsDate) {
			t.Errorf("expected ErrNeedsDate, got %v", err)
		}
		if err := svc.SelectField(ctx, "s", "color"); !errors.Is(err, ErrUnknownField) {
			t.Errorf("expected ErrUnknownField, got %v", err)
		}
	})

	t.Run("new time conflicts with default duration", func(t *testing.T) {
		svc, _ := newTestService(t, &task.Data{Uncompleted: []task.Task{
			{Name: "Standup", Date: "2024-06-01", Time: "09:00", Duration: "1:00"},
			{Name: "Lunch", Date: "2024-06-01"},
		}}, utc)
		svc.BeginEdit(ctx, "s", "Lunch")
		if err := svc.SelectField(ctx, "s", "time"); err != nil {
			t.Fatal(err)
		}
		_, err := svc.ApplyEdit(ctx, "s", "08:30")
		if !errors.Is(err, ErrTimeConflict) {
			t.Fatalf("expected ErrTimeConflict, got %v", err)
		}
		got, err := svc.ApplyEdit(ctx, "s", "12:00")
		if err != nil {
			t.Fatalf("retry after conflict: %v", err)
		}
		if got.Time != "12:00" || got.Duration != "" {
			t.Errorf("edited task: got %+v", got)
		}
	})

	t.Run("editing own window is not a conflict", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		svc.BeginEdit(ctx, "s", "Standup")
		svc.SelectField(ctx, "s", "duration")
		if _, err := svc.ApplyEdit(ctx, "s", "1:30"); err != nil {
			t.Errorf("ApplyEdit: %v", err)
		}
	})

	t.Run("tags need hash prefix", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		svc.BeginEdit(ctx, "s", "Groceries")
		svc.SelectField(ctx, "s", "tags")
		if _, err := svc.ApplyEdit(ctx, "s", "#home errands"); !errors.Is(err, ErrInvalidTags) {
			t.Errorf("expected ErrInvalidTags, got %v", err)
		}
		got, err := svc.ApplyEdit(ctx, "s", "#Home #errands")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got.Tags, ",") != "home,errands" {
			t.Errorf("tags: got %v", got.Tags)
		}
	})

	t.Run("rename must stay unique", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		svc.BeginEdit(ctx, "s", "Groceries")
		svc.SelectField(ctx, "s", "name")
		if _, err := svc.ApplyEdit(ctx, "s", "GYM"); !errors.Is(err, ErrDuplicateName) {
			t.Errorf("expected ErrDuplicateName, got %v", err)
		}
		if _, err := svc.ApplyEdit(ctx, "s", ""); err == nil {
			t.Error("expected error for empty name")
		}
	})

	t.Run("invalid value keeps session", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		svc.BeginEdit(ctx, "s", "Groceries")
		svc.SelectField(ctx, "s", "priority")
		if _, err := svc.ApplyEdit(ctx, "s", "whenever"); err == nil {
			t.Fatal("expected validation error")
		}
		got, err := svc.ApplyEdit(ctx, "s", "Urgent")
		if err != nil || got.Priority != task.PriorityUrgent {
			t.Errorf("ApplyEdit: got (%+v, %v)", got, err)
		}
	})

	t.Run("apply before select", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		svc.BeginEdit(ctx, "s", "Groceries")
		if _, err := svc.ApplyEdit(ctx, "s", "x"); !errors.Is(err, ErrNoField) {
			t.Errorf("expected ErrNoField, got %v", err)
		}
		if err := svc.CancelEdit(ctx, "s"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		svc, _ := newTestService(t, sampleData(), utc)
		if _, err := svc.BeginEdit(ctx, "s", "Nothing"); !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})
}
