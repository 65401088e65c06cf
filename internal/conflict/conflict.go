// Package conflict detects overlapping scheduled time windows between tasks.
//
// A task participates only when it has a date, a time and a duration. Its
// window is the half-open interval [date+time, date+time+duration), so a
// task ending at 10:00 does not conflict with one starting at 10:00.
package conflict

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nibzard/mdtasks/internal/task"
)

// DefaultDuration is assumed for a task that gets a time but has no duration.
const DefaultDuration = "1:00"

// ErrDurationTooLong is returned by ParseDuration when the duration does not
// fit in a time.Duration.
var ErrDurationTooLong = errors.New("duration too long")

// Window returns the scheduled interval of t. ok is false when t is missing
// a date, time or duration, or when any of them does not parse. A duration
// too long for a time.Duration extends the window as far as one allows.
func Window(t task.Task) (start, end time.Time, ok bool) {
	if !t.Scheduled() {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse("2006-01-02 15:04", t.Date+" "+t.Time)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	d, err := ParseDuration(t.Duration)
	switch {
	case errors.Is(err, ErrDurationTooLong):
		d = math.MaxInt64
	case err != nil:
		return time.Time{}, time.Time{}, false
	}
	return start, start.Add(d), true
}

// ParseDuration parses an H:MM duration. Hours may have any number of digits.
func ParseDuration(s string) (time.Duration, error) {
	hours, minutes, found := strings.Cut(s, ":")
	if !found || hours == "" || len(minutes) != 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	h, err := strconv.Atoi(hours)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %q", ErrDurationTooLong, s)
	}
	if err != nil || h < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if int64(h) > (math.MaxInt64-int64(m)*int64(time.Minute))/int64(time.Hour) {
		return 0, fmt.Errorf("%w: %q", ErrDurationTooLong, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Overlaps reports whether two half-open windows intersect.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && endA.After(startB)
}

// FindTimeConflict returns the first task in existing whose window overlaps
// the candidate's. Tasks named excludeName (case-insensitive) are skipped so
// an edited task is not compared against its own previous entry.
func FindTimeConflict(candidate task.Task, existing []task.Task, excludeName string) (task.Task, bool) {
	start, end, ok := Window(candidate)
	if !ok {
		return task.Task{}, false
	}
	exclude := strings.TrimSpace(excludeName)
	for _, other := range existing {
		if other.Date != candidate.Date {
			continue
		}
		if exclude != "" && strings.EqualFold(strings.TrimSpace(other.Name), exclude) {
			continue
		}
		otherStart, otherEnd, ok := Window(other)
		if !ok {
			continue
		}
		if Overlaps(start, end, otherStart, otherEnd) {
			return other, true
		}
	}
	return task.Task{}, false
}

// WithDefaultDuration returns t with duration set to d when t has a time but
// no duration.
func WithDefaultDuration(t task.Task, d string) task.Task {
	if t.Time != "" && t.Duration == "" {
		t.Duration = d
	}
	return t
}

// Describe renders a conflicting task for user-facing rejection messages.
func Describe(t task.Task) string {
	return fmt.Sprintf("%q (Date: %s, Time: %s, Duration: %s)", t.Name, t.Date, t.Time, t.Duration)
}
