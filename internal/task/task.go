package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultStartTime is used when a task has no start time of its own.
const DefaultStartTime = "10:00"

// Layouts for the user-submitted schedule fields.
const (
	deadlineLayout  = "2006-01-02"
	startTimeLayout = "15:04"
	combinedLayout  = deadlineLayout + " " + startTimeLayout
)

// Task is a single unit of work as submitted by the user.
// Identity is positional: a task is addressed by its index in the
// ordered task list and carries no independent ID.
type Task struct {
	Name      string `json:"name"`
	Priority  string `json:"priority"`
	Duration  string `json:"duration"`
	Energy    string `json:"energy"`
	Deadline  string `json:"deadline"`
	StartTime string `json:"start_time"`
}

// ValidationError describes a task field that could not be accepted.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task field %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Validate checks that all required string fields are present.
// It deliberately performs no type or range checks: duration and date
// parsing happen in Window so that malformed values fail at scheduling
// time, per task, instead of blocking task creation.
func (t Task) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"name", t.Name},
		{"priority", t.Priority},
		{"duration", t.Duration},
		{"energy", t.Energy},
		{"deadline", t.Deadline},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Value: r.value, Reason: "required"}
		}
	}
	return nil
}

// Window is the concrete time interval derived from a task's schedule
// fields. End is always strictly after Start.
type Window struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Window derives the task's time window in the given location.
//
// Duration must parse as a positive integer of minutes. Deadline and
// StartTime (defaultStart when empty) combine as "2006-01-02 15:04".
// Any parse failure returns a *ValidationError describing the offending
// field.
func (t Task) Window(defaultStart string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if defaultStart == "" {
		defaultStart = DefaultStartTime
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(t.Duration))
	if err != nil {
		return Window{}, &ValidationError{Field: "duration", Value: t.Duration, Reason: "not an integer"}
	}
	if minutes <= 0 {
		return Window{}, &ValidationError{Field: "duration", Value: t.Duration, Reason: "must be positive"}
	}

	startTime := strings.TrimSpace(t.StartTime)
	if startTime == "" {
		startTime = defaultStart
	}

	combined := strings.TrimSpace(t.Deadline) + " " + startTime
	start, err := time.ParseInLocation(combinedLayout, combined, loc)
	if err != nil {
		return Window{}, &ValidationError{Field: "deadline", Value: combined, Reason: "not a valid date and time"}
	}

	d := time.Duration(minutes) * time.Minute
	return Window{
		Start:    start,
		End:      start.Add(d),
		Duration: d,
	}, nil
}

// Description composes the calendar event description from the task's
// non-schedule attributes.
func (t Task) Description() string {
	return fmt.Sprintf("Priority: %s, Energy: %s", t.Priority, t.Energy)
}
