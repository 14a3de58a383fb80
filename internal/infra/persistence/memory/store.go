// Package memory keeps slide book runs in process memory. Used for tests and
// throwaway sessions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"slideapp/internal/slidebook"
)

var _ slidebook.Store = (*Store)(nil)

type location struct {
	name     string
	lastUsed time.Time
}

// Store implements slidebook.Store.
type Store struct {
	mu        sync.RWMutex
	runs      map[string]slidebook.Run
	locations map[string]map[string]location
}

// New returns an empty store.
func New() *Store {
	return &Store{
		runs:      make(map[string]slidebook.Run),
		locations: make(map[string]map[string]location),
	}
}

func (s *Store) SaveRun(_ context.Context, run slidebook.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("%w: %s", slidebook.ErrDuplicateRun, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *Store) ListRuns(_ context.Context, username string) ([]slidebook.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []slidebook.Run
	for _, run := range s.runs {
		if run.Username == username {
			out = append(out, cloneRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) RememberLocation(_ context.Context, username, loc string, at time.Time) error {
	if loc == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.locations[username]
	if !ok {
		byName = make(map[string]location)
		s.locations[username] = byName
	}
	byName[loc] = location{name: loc, lastUsed: at}
	return nil
}

func (s *Store) Locations(_ context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]location, 0, len(s.locations[username]))
	for _, l := range s.locations[username] {
		entries = append(entries, l)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].lastUsed.Equal(entries[j].lastUsed) {
			return entries[i].lastUsed.After(entries[j].lastUsed)
		}
		return entries[i].name < entries[j].name
	})
	out := make([]string, len(entries))
	for i, l := range entries {
		out[i] = l.name
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

func cloneRun(run slidebook.Run) slidebook.Run {
	run.Payload.Slides = append([]slidebook.Row(nil), run.Payload.Slides...)
	return run
}
