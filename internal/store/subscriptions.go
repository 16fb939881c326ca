package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrInvalidSubscription marks records that are not valid JSON.
var ErrInvalidSubscription = errors.New("invalid subscription record")

// SubscriptionStore owns the set of push subscription records. Records
// are opaque JSON documents supplied by clients; equality is decided on
// the compacted JSON bytes, so re-registering the same endpoint is a
// no-op.
type SubscriptionStore struct {
	mu   sync.Mutex
	path string
	subs []json.RawMessage
	seen map[string]struct{}
}

// NewSubscriptionStore opens the subscription set at path, creating the
// parent directory if needed. A missing file yields an empty set.
func NewSubscriptionStore(path string) (*SubscriptionStore, error) {
	if path == "" {
		return nil, errors.New("subscription store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &SubscriptionStore{path: path, seen: map[string]struct{}{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SubscriptionStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read subscriptions: %w", err)
	}

	var subs []json.RawMessage
	if err := json.Unmarshal(data, &subs); err != nil {
		return fmt.Errorf("failed to decode subscriptions: %w", err)
	}
	for _, sub := range subs {
		key, err := canonicalize(sub)
		if err != nil {
			// Skip records that are no longer valid JSON rather than
			// refusing to start.
			continue
		}
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Add registers a subscription record. Byte-identical records (after
// JSON compaction) are suppressed; added reports whether the set grew.
func (s *SubscriptionStore) Add(sub json.RawMessage) (added bool, err error) {
	key, err := canonicalize(sub)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[key]; dup {
		return false, nil
	}

	record := json.RawMessage(key)
	s.subs = append(s.subs, record)
	if err := writeJSONAtomic(s.path, s.subs); err != nil {
		s.subs = s.subs[:len(s.subs)-1]
		return false, err
	}
	s.seen[key] = struct{}{}
	return true, nil
}

// List returns a snapshot copy of all registered subscription records.
// Order carries no meaning.
func (s *SubscriptionStore) List() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]json.RawMessage, len(s.subs))
	for i, sub := range s.subs {
		cp := make(json.RawMessage, len(sub))
		copy(cp, sub)
		out[i] = cp
	}
	return out
}

// Len returns the number of registered subscriptions.
func (s *SubscriptionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func canonicalize(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
