package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"planpush/internal/calendar"
	"planpush/internal/logging"
	"planpush/internal/task"
)

const (
	defaultWorkers       = 4
	defaultSubmitTimeout = 30 * time.Second
)

// Sink receives the calendar events a run produces.
type Sink interface {
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error)
}

// Config controls how tasks are projected onto the calendar.
type Config struct {
	// CalendarID is the target calendar, usually "primary".
	CalendarID string

	// TimeZone is the IANA zone task times are interpreted in.
	TimeZone string

	// DefaultStartTime fills in for tasks without an explicit start,
	// formatted as "15:04".
	DefaultStartTime string

	// Workers bounds concurrent event submissions.
	Workers int

	// SubmitTimeout bounds a single event submission.
	SubmitTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if c.DefaultStartTime == "" {
		c.DefaultStartTime = task.DefaultStartTime
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = defaultSubmitTimeout
	}
}

// Result reports the outcome for one task of a run. Exactly one of
// Link and Err is meaningful.
type Result struct {
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
	Err  error  `json:"-"`
}

// Scheduler turns tasks into calendar events through a Sink.
type Scheduler struct {
	cfg    Config
	loc    *time.Location
	logger *slog.Logger
}

// New creates a Scheduler. It fails if the configured time zone is
// unknown.
func New(cfg Config, logger *slog.Logger) (*Scheduler, error) {
	cfg.applyDefaults()

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:    cfg,
		loc:    loc,
		logger: logger.With(logging.KeyOperation, "schedule"),
	}, nil
}

// Run projects tasks onto the calendar through sink. The returned
// slice has one Result per input task, in input order. A task that
// fails to parse or submit gets its error recorded in its slot; the
// remaining tasks still run. Only ctx cancellation aborts the run.
func (s *Scheduler) Run(ctx context.Context, sink Sink, tasks []task.Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, t := range tasks {
		results[i].Name = t.Name
		g.Go(func() error {
			results[i] = s.schedule(gctx, sink, t)
			return nil
		})
	}
	g.Wait()

	scheduled := 0
	for _, r := range results {
		if r.Err == nil {
			scheduled++
		}
	}
	s.logger.Info("Scheduling run complete",
		"total", len(tasks),
		"scheduled", scheduled,
		"failed", len(tasks)-scheduled,
		logging.KeyDuration, time.Since(start))

	return results
}

// schedule handles a single task. Parse failures never reach the sink.
func (s *Scheduler) schedule(ctx context.Context, sink Sink, t task.Task) Result {
	result := Result{Name: t.Name}

	window, err := t.Window(s.cfg.DefaultStartTime, s.loc)
	if err != nil {
		result.Err = err
		s.logger.Warn("Skipping unschedulable task",
			logging.TaskName(t.Name),
			logging.KeyError, err.Error())
		return result
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	event, err := sink.CreateEvent(submitCtx, s.cfg.CalendarID, calendar.EventInput{
		Summary:     t.Name,
		Description: t.Description(),
		Start:       window.Start,
		End:         window.End,
		TimeZone:    s.cfg.TimeZone,
	})
	if err != nil {
		result.Err = err
		s.logger.Warn("Failed to create event",
			logging.TaskName(t.Name),
			logging.KeyError, err.Error())
		return result
	}

	result.Link = event.HTMLLink
	s.logger.Debug("Scheduled task",
		logging.TaskName(t.Name),
		"event_id", event.ID)
	return result
}
