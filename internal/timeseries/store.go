package timeseries

import (
	"sort"
	"sync"
	"time"
)

// Store defines the interface for storing time series
type Store interface {
	// Upsert returns the series for the given key, creating it if it doesn't exist.
	// It returns nil when the series limit is reached.
	Upsert(key string) *Series

	// Get returns the series for the given key
	Get(key string) (*Series, bool)

	// Keys returns all series keys, sorted
	Keys() []string

	// Prune removes old data from all series
	Prune(now time.Time)
}

// MemStore is an in-memory implementation of Store
type MemStore struct {
	mu     sync.RWMutex
	series map[string]*Series
	config Config
}

// NewMemStore creates a new in-memory store with the given configuration
func NewMemStore(config Config) *MemStore {
	return &MemStore{
		series: make(map[string]*Series),
		config: config,
	}
}

// Upsert returns the series for the given key, creating it if it doesn't exist
func (m *MemStore) Upsert(key string) *Series {
	m.mu.Lock()
	defer m.mu.Unlock()

	if series, exists := m.series[key]; exists {
		return series
	}

	if m.config.MaxSeries > 0 && len(m.series) >= m.config.MaxSeries {
		return nil
	}

	series := NewSeries(m.config)
	m.series[key] = series
	return series
}

// Get returns the series for the given key
func (m *MemStore) Get(key string) (*Series, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series, exists := m.series[key]
	return series, exists
}

// Keys returns all series keys, sorted
func (m *MemStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.series))
	for key := range m.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Prune removes old data from all series and drops series left empty
func (m *MemStore) Prune(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, series := range m.series {
		series.Prune(now)
		if series.Len() == 0 {
			delete(m.series, key)
		}
	}
}
