// Package store persists the two shared collections: the ordered task
// list and the subscription set.
//
// Both stores keep their state in memory behind a mutex and write the
// whole collection back to a JSON file on every mutation, via a temp
// file and rename so a crashed write never leaves a partial document.
// Readers receive snapshot copies; a reader may observe a stale list but
// never a torn one.
package store
