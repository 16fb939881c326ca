// Package task defines the user-facing task record and the rules for
// turning it into a concrete time window.
//
// A task carries its scheduling attributes as the raw strings the user
// submitted. Field presence is validated when the task enters the store;
// type-level parsing (duration as minutes, deadline plus start time as a
// timestamp) is deferred to scheduling time so that a malformed task can
// be stored and listed but fails, in isolation, when projected onto the
// calendar.
package task
