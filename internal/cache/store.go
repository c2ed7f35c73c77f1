package cache

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Entry is a cached value together with the time it was stored
type Entry struct {
	Value      any
	InsertedAt time.Time
}

// Store is a thread-safe key/value cache with a fixed TTL per instance.
// Entries expire lazily: an expired entry is removed by the Get that observes it.
// There is no size bound and no background sweep.
type Store struct {
	mutex     sync.Mutex
	items     map[string]Entry
	ttl       time.Duration
	disabled  bool
	now       func() time.Time
	hitCount  int64
	missCount int64
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the time source used for insertion and expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Disabled turns the store into a pass-through that never retains values
func Disabled() Option {
	return func(s *Store) {
		s.disabled = true
	}
}

// NewStore creates a cache whose entries live for ttl
func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		items: make(map[string]Entry),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the time-to-live applied to every entry
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the value stored under key if it has not expired.
// An entry is valid while now - InsertedAt <= ttl.
func (s *Store) Get(key string) (any, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.items[key]
	if !exists {
		s.missCount++
		return nil, false
	}

	if s.now().Sub(entry.InsertedAt) > s.ttl {
		delete(s.items, key)
		s.missCount++
		return nil, false
	}

	s.hitCount++
	return entry.Value, true
}

// Set stores value under key, replacing any previous entry
func (s *Store) Set(key string, value any) {
	if s.disabled {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items[key] = Entry{
		Value:      value,
		InsertedAt: s.now(),
	}
}

// Invalidate removes a specific cache entry
func (s *Store) Invalidate(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.items, key)
}

// Clear removes all items from the cache and resets statistics
func (s *Store) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items = make(map[string]Entry)
	s.hitCount = 0
	s.missCount = 0
}

// Len returns the number of stored entries, including expired ones not yet read
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.items)
}

// Stats returns cache statistics
func (s *Store) Stats() map[string]interface{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	total := s.hitCount + s.missCount
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(s.hitCount) / float64(total) * 100
	}

	return map[string]interface{}{
		"items":    len(s.items),
		"ttl":      s.ttl.String(),
		"hits":     s.hitCount,
		"misses":   s.missCount,
		"hit_rate": hitRate,
	}
}

// Key builds a cache key from a stage identity, a namespace and query parameters.
// Parameters are sorted by name so equal queries always map to the same key, and
// every component is length-prefixed so distinct queries never collide.
func Key(stage, namespace string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	writePart(&b, stage)
	writePart(&b, namespace)
	for _, name := range names {
		writePart(&b, name)
		writePart(&b, params[name])
	}
	return b.String()
}

func writePart(b *strings.Builder, part string) {
	b.WriteString(strconv.Itoa(len(part)))
	b.WriteByte(':')
	b.WriteString(part)
	b.WriteByte('|')
}
