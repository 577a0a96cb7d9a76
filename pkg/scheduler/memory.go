package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process Store for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Schedule(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.ExecutionID] = entry

	return nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]Entry, 0)

	for _, entry := range s.entries {
		if !entry.ResumeAt.After(now) {
			due = append(due, entry)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ResumeAt.Before(due[j].ResumeAt) })

	if len(due) > limit {
		due = due[:limit]
	}

	for _, entry := range due {
		delete(s.entries, entry.ExecutionID)
	}

	return due, nil
}

func (s *MemoryStore) Remove(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, executionID)

	return nil
}
