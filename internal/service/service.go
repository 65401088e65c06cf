// Package service implements the task operations offered by the CLI, the
// TUI and the HTTP API. Every mutating operation reads the document fresh,
// applies one change and saves it back through the persistence coordinator.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/mdtasks/internal/conflict"
	"github.com/nibzard/mdtasks/internal/logging"
	"github.com/nibzard/mdtasks/internal/persist"
	"github.com/nibzard/mdtasks/internal/session"
	"github.com/nibzard/mdtasks/internal/task"
)

var (
	// ErrTaskNotFound is returned when no task matches the given name.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateName is returned when an uncompleted task already has the name.
	ErrDuplicateName = errors.New("Task name must be unique")
	// ErrInvalidTags is returned when an edited tag list has a word without '#'.
	ErrInvalidTags = errors.New("Tags must be prefixed with # (e.g., #work #sports)")
	// ErrTimeConflict matches every *TimeConflictError.
	ErrTimeConflict = errors.New("time conflict")
)

// TimeConflictError names the task whose window overlaps the rejected one.
type TimeConflictError struct {
	With task.Task
}

func (e *TimeConflictError) Error() string {
	return "Time conflict with existing task: " + conflict.Describe(e.With)
}

// Is makes errors.Is(err, ErrTimeConflict) true.
func (e *TimeConflictError) Is(target error) bool {
	return target == ErrTimeConflict
}

// Filter selects tasks for List.
type Filter struct {
	// All includes completed tasks after the uncompleted ones.
	All bool
	// Tags keeps only tasks carrying every tag.
	Tags []string
}

// Service runs task operations against one document.
type Service struct {
	coord    *persist.Coordinator
	sessions session.Store
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSessions sets the store used by the edit flow.
func WithSessions(s session.Store) Option {
	return func(svc *Service) { svc.sessions = s }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(svc *Service) { svc.logger = logging.OrDiscard(l) }
}

// WithClock sets the time source for completion stamps.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// New returns a Service. Sessions default to an in-memory store.
func New(coord *persist.Coordinator, opts ...Option) *Service {
	svc := &Service{
		coord:  coord,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sessions == nil {
		svc.sessions = session.NewMemory(session.DefaultTTL)
	}
	return svc
}

// Snapshot returns the current document state.
func (s *Service) Snapshot(ctx context.Context) (persist.Snapshot, error) {
	return s.coord.Query(ctx)
}

// List returns uncompleted tasks, or all tasks with f.All, narrowed to
// those carrying every tag in f.Tags.
func (s *Service) List(ctx context.Context, f Filter) ([]task.Task, error) {
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return nil, err
	}
	tasks := snap.Data.Uncompleted
	if f.All {
		tasks = snap.Data.All()
	}
	if len(f.Tags) > 0 {
		tasks = task.FilterByTags(tasks, task.NormalizeTags(f.Tags))
	}
	return tasks, nil
}

// Today returns the uncompleted tasks dated on the day now falls on in the
// document's timezone, ordered by time.
func (s *Service) Today(ctx context.Context, now time.Time) ([]task.Task, error) {
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Metadata.Timezone == "" {
		return nil, persist.ErrNoTimezone
	}
	loc, err := time.LoadLocation(snap.Metadata.Timezone)
	if err != nil {
		return nil, fmt.Errorf("document timezone %q: %w", snap.Metadata.Timezone, err)
	}
	day := now.In(loc).Format("2006-01-02")
	return task.SortTasks(task.DueOn(snap.Data.Uncompleted, day), task.SortByTime), nil
}

// Add appends t to the uncompleted tasks. A task with a time but no
// duration gets the default duration.
func (s *Service) Add(ctx context.Context, t task.Task) (task.Task, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Description = strings.TrimSpace(t.Description)
	t.Link = strings.TrimSpace(t.Link)
	t.Completed = false
	t.Tags = task.NormalizeTags(t.Tags)
	t.Priority = task.Priority(strings.ToLower(string(t.Priority)))
	t = conflict.WithDefaultDuration(t, conflict.DefaultDuration)
	if err := task.ValidateAll([]task.Task{t}); err != nil {
		return task.Task{}, err
	}

	snap, err := s.coord.Query(ctx)
	if err != nil {
		return task.Task{}, err
	}
	if task.FindIndex(snap.Data.Uncompleted, t.Name) >= 0 {
		return task.Task{}, ErrDuplicateName
	}
	if other, found := conflict.FindTimeConflict(t, snap.Data.Uncompleted, ""); found {
		return task.Task{}, &TimeConflictError{With: other}
	}

	snap.Data.Uncompleted = append(snap.Data.Uncompleted, t)
	if err := s.save(ctx, snap); err != nil {
		return task.Task{}, err
	}
	s.logger.Info("added task", "op", "add", "task", t.Name)
	return t, nil
}

// Complete marks the uncompleted task called name as done and moves it to
// the completed list.
func (s *Service) Complete(ctx context.Context, name string) (task.Task, error) {
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return task.Task{}, err
	}
	i := task.FindIndex(snap.Data.Uncompleted, name)
	if i < 0 {
		return task.Task{}, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	done := snap.Data.Uncompleted[i]
	done.Completed = true
	done.Log = "completed: " + s.now().UTC().Format(persist.TimestampLayout)

	snap.Data.Uncompleted = task.Remove(snap.Data.Uncompleted, i)
	snap.Data.Completed = append(snap.Data.Completed, done)
	if err := s.save(ctx, snap); err != nil {
		return task.Task{}, err
	}
	s.logger.Info("completed task", "op", "complete", "task", done.Name)
	return done, nil
}

// Remove deletes the task called name, looking at uncompleted tasks first.
func (s *Service) Remove(ctx context.Context, name string) (task.Task, error) {
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return task.Task{}, err
	}
	var removed task.Task
	if i := task.FindIndex(snap.Data.Uncompleted, name); i >= 0 {
		removed = snap.Data.Uncompleted[i]
		snap.Data.Uncompleted = task.Remove(snap.Data.Uncompleted, i)
	} else if i := task.FindIndex(snap.Data.Completed, name); i >= 0 {
		removed = snap.Data.Completed[i]
		snap.Data.Completed = task.Remove(snap.Data.Completed, i)
	} else {
		return task.Task{}, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	if err := s.save(ctx, snap); err != nil {
		return task.Task{}, err
	}
	s.logger.Info("removed task", "op", "remove", "task", removed.Name)
	return removed, nil
}

// ClearCompleted drops every completed task and returns how many were
// dropped. Nothing is written when there is nothing to drop.
func (s *Service) ClearCompleted(ctx context.Context) (int, error) {
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return 0, err
	}
	n := len(snap.Data.Completed)
	if n == 0 {
		return 0, nil
	}
	snap.Data.Completed = make([]task.Task, 0)
	if err := s.save(ctx, snap); err != nil {
		return 0, err
	}
	s.logger.Info("cleared completed tasks", "op", "clear-completed", "count", n)
	return n, nil
}

// Sort reorders the uncompleted tasks and persists the new order.
func (s *Service) Sort(ctx context.Context, key task.SortKey) ([]task.Task, error) {
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return nil, err
	}
	snap.Data.Uncompleted = task.SortTasks(snap.Data.Uncompleted, key)
	if err := s.save(ctx, snap); err != nil {
		return nil, err
	}
	return snap.Data.Uncompleted, nil
}

// SetTimezone stores an IANA timezone name in the document metadata.
func (s *Service) SetTimezone(ctx context.Context, tz string) error {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return fmt.Errorf("timezone must not be empty")
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return err
	}
	snap.Metadata.Timezone = tz
	return s.save(ctx, snap)
}

func (s *Service) save(ctx context.Context, snap persist.Snapshot) error {
	return s.coord.Save(ctx, snap.Data, snap.Metadata)
}
