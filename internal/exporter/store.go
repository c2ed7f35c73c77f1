package exporter

import (
	"context"
	"sync"
)

// SnapshotStore keeps the most recent cycle for the HTTP server
type SnapshotStore struct {
	mu     sync.RWMutex
	latest *Cycle
}

// NewSnapshotStore creates an empty store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Name returns the exporter name
func (s *SnapshotStore) Name() string {
	return "snapshot"
}

// Export replaces the stored cycle
func (s *SnapshotStore) Export(_ context.Context, cycle Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &cycle
	return nil
}

// Latest returns the most recent cycle, if any
func (s *SnapshotStore) Latest() (Cycle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Cycle{}, false
	}
	return *s.latest, true
}
