package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nibzard/mdtasks/internal/conflict"
	"github.com/nibzard/mdtasks/internal/persist"
	"github.com/nibzard/mdtasks/internal/session"
	"github.com/nibzard/mdtasks/internal/task"
)

// EditableFields lists the fields the edit flow accepts, in menu order.
var EditableFields = []string{"name", "date", "time", "duration", "priority", "tags", "description", "link"}

var (
	// ErrUnknownField is returned by SelectField for a field not in EditableFields.
	ErrUnknownField = errors.New("unknown field")
	// ErrNoField is returned by ApplyEdit before a field was selected.
	ErrNoField = errors.New("no field selected")
	// ErrNeedsDate is returned when selecting time or duration on an undated task.
	ErrNeedsDate = errors.New("set a date before setting a time or duration")
	// ErrNeedsTime is returned when selecting duration on a task without a time.
	ErrNeedsTime = errors.New("set a time before setting a duration")
)

// NewSession starts an empty edit session and returns its id.
func (s *Service) NewSession(ctx context.Context) (string, error) {
	id := session.NewID()
	if err := s.sessions.Save(ctx, session.Session{ID: id}); err != nil {
		return "", err
	}
	return id, nil
}

// BeginEdit points the session at the uncompleted task called name. The
// session is created if it does not exist.
func (s *Service) BeginEdit(ctx context.Context, sessionID, name string) (task.Task, error) {
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return task.Task{}, err
	}
	i := task.FindIndex(snap.Data.Uncompleted, name)
	if i < 0 {
		return task.Task{}, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	t := snap.Data.Uncompleted[i]
	if err := s.sessions.Save(ctx, session.Session{ID: sessionID, TaskName: t.Name}); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// SelectField picks the field the next ApplyEdit changes.
func (s *Service) SelectField(ctx context.Context, sessionID, field string) error {
	field = strings.ToLower(strings.TrimSpace(field))
	if !editable(field) {
		return fmt.Errorf("%w %q, must be one of: %s", ErrUnknownField, field, strings.Join(EditableFields, ", "))
	}
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	snap, i, err := s.sessionTask(ctx, sess)
	if err != nil {
		return err
	}
	t := snap.Data.Uncompleted[i]
	switch {
	case (field == "time" || field == "duration") && t.Date == "":
		return ErrNeedsDate
	case field == "duration" && t.Time == "":
		return ErrNeedsTime
	}
	sess.Field = field
	return s.sessions.Save(ctx, sess)
}

// ApplyEdit sets the selected field to value and saves the task. An empty
// value clears the field; clearing the date also clears time and duration,
// and clearing the time clears the duration. On success the session ends.
// On a validation or conflict error the session is kept so the value can be
// re-entered.
func (s *Service) ApplyEdit(ctx context.Context, sessionID, value string) (task.Task, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return task.Task{}, err
	}
	if sess.Field == "" {
		return task.Task{}, ErrNoField
	}
	snap, i, err := s.sessionTask(ctx, sess)
	if err != nil {
		return task.Task{}, err
	}

	updated, err := applyField(snap.Data.Uncompleted[i].Clone(), sess.Field, strings.TrimSpace(value))
	if err != nil {
		return task.Task{}, err
	}

	others := task.Remove(snap.Data.Uncompleted, i)
	if sess.Field == "name" && task.FindIndex(others, updated.Name) >= 0 {
		return task.Task{}, ErrDuplicateName
	}
	if updated.Date != "" && updated.Time != "" {
		candidate := conflict.WithDefaultDuration(updated, conflict.DefaultDuration)
		if other, found := conflict.FindTimeConflict(candidate, others, ""); found {
			return task.Task{}, &TimeConflictError{With: other}
		}
	}

	snap.Data.Uncompleted[i] = updated
	if err := s.save(ctx, snap); err != nil {
		return task.Task{}, err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("could not end edit session", "op", "edit", "session", sessionID, "err", err)
	}
	s.logger.Info("edited task", "op", "edit", "task", updated.Name, "field", sess.Field)
	return updated, nil
}

// CancelEdit ends a session without changing anything.
func (s *Service) CancelEdit(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// sessionTask re-reads the document and returns it with the index of the
// session's task among the uncompleted tasks.
func (s *Service) sessionTask(ctx context.Context, sess session.Session) (persist.Snapshot, int, error) {
	if sess.TaskName == "" {
		return persist.Snapshot{}, -1, fmt.Errorf("%w: no task selected", ErrTaskNotFound)
	}
	snap, err := s.coord.Query(ctx)
	if err != nil {
		return persist.Snapshot{}, -1, err
	}
	i := task.FindIndex(snap.Data.Uncompleted, sess.TaskName)
	if i < 0 {
		return persist.Snapshot{}, -1, fmt.Errorf("%w: %q", ErrTaskNotFound, sess.TaskName)
	}
	return snap, i, nil
}

func applyField(t task.Task, field, value string) (task.Task, error) {
	if field == "priority" {
		value = strings.ToLower(value)
	}
	if value != "" || field == "name" {
		if err := task.ValidateField(field, value); err != nil {
			return task.Task{}, err
		}
	}

	switch field {
	case "name":
		t.Name = value
	case "date":
		t.Date = value
		if value == "" {
			t.Time = ""
			t.Duration = ""
		}
	case "time":
		t.Time = value
		if value == "" {
			t.Duration = ""
		}
	case "duration":
		t.Duration = value
	case "priority":
		t.Priority = task.Priority(value)
	case "tags":
		for _, word := range strings.Fields(value) {
			if !strings.HasPrefix(word, "#") || len(word) < 2 {
				return task.Task{}, ErrInvalidTags
			}
		}
		t.Tags = task.ParseTags(value)
	case "description":
		t.Description = value
	case "link":
		t.Link = value
	default:
		return task.Task{}, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return t, nil
}

func editable(field string) bool {
	for _, f := range EditableFields {
		if f == field {
			return true
		}
	}
	return false
}
