// Package scheduler projects stored tasks onto a calendar. Each task
// becomes one event in the configured calendar; a task that cannot be
// parsed or submitted is reported in its result slot without affecting
// the other tasks in the run.
package scheduler
