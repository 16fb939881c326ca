package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"planpush/internal/task"
)

// TaskStore owns the ordered task list. All mutations run under a
// store-level mutex and are persisted before they return.
type TaskStore struct {
	mu    sync.Mutex
	path  string
	tasks []task.Task
}

// NewTaskStore opens the task list at path, creating the parent
// directory if needed. A missing file yields an empty list.
func NewTaskStore(path string) (*TaskStore, error) {
	if path == "" {
		return nil, errors.New("task store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &TaskStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TaskStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.tasks = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read task list: %w", err)
	}

	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("failed to decode task list: %w", err)
	}
	s.tasks = tasks
	return nil
}

// List returns a snapshot copy of the current task list in insertion
// order.
func (s *TaskStore) List() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]task.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Add validates the task's required fields, appends it to the list and
// persists. The appended task keeps insertion order.
func (s *TaskStore) Add(t task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, t)
	if err := s.saveLocked(); err != nil {
		// Roll back the in-memory append so memory and disk agree.
		s.tasks = s.tasks[:len(s.tasks)-1]
		return err
	}
	return nil
}

// Remove deletes the task at index and persists. Subsequent tasks shift
// down one position. An out-of-range index leaves the list unchanged
// and reports removed=false without an error.
func (s *TaskStore) Remove(index int) (task.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.tasks) {
		return task.Task{}, false, nil
	}

	removed := s.tasks[index]
	rest := make([]task.Task, 0, len(s.tasks)-1)
	rest = append(rest, s.tasks[:index]...)
	rest = append(rest, s.tasks[index+1:]...)

	prev := s.tasks
	s.tasks = rest
	if err := s.saveLocked(); err != nil {
		s.tasks = prev
		return task.Task{}, false, err
	}
	return removed, true, nil
}

func (s *TaskStore) saveLocked() error {
	return writeJSONAtomic(s.path, s.tasks)
}

// writeJSONAtomic writes v as indented JSON to path via a temp file and
// rename, so a subsequent load never observes a partial write.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
