package timeseries

import (
	"sync"
	"time"
)

// Series is a fixed-size ring buffer of points in insertion order
type Series struct {
	mu     sync.RWMutex
	config Config

	ring []Point
	head int
	full bool
}

// NewSeries creates a new Series with the given configuration
func NewSeries(config Config) *Series {
	size := config.MaxPoints
	if size < 1 {
		size = 1
	}
	return &Series{
		config: config,
		ring:   make([]Point, size),
	}
}

// Add adds a new point to the series, overwriting the oldest one when full
func (s *Series) Add(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.head] = p
	s.head = (s.head + 1) % len(s.ring)
	if s.head == 0 {
		s.full = true
	}
}

// Len returns the number of points held
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size()
}

func (s *Series) size() int {
	if s.full {
		return len(s.ring)
	}
	return s.head
}

// GetSince returns the points at or after since, oldest first. A zero since returns every point.
func (s *Series) GetSince(since time.Time) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointsSince(since)
}

func (s *Series) pointsSince(since time.Time) []Point {
	size := s.size()
	if size == 0 {
		return nil
	}

	// For a full buffer the oldest point is at head
	start := 0
	if s.full {
		start = s.head
	}

	result := make([]Point, 0, size)
	for i := 0; i < size; i++ {
		point := s.ring[(start+i)%len(s.ring)]
		if point.IsZero() || (!since.IsZero() && point.T.Before(since)) {
			continue
		}
		result = append(result, point)
	}
	return result
}

// Latest returns the most recently added point
func (s *Series) Latest() (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.size() == 0 {
		return Point{}, false
	}
	idx := (s.head - 1 + len(s.ring)) % len(s.ring)
	return s.ring[idx], true
}

// Prune drops points older than the configured max window relative to now
func (s *Series) Prune(now time.Time) {
	if s.config.MaxWindow <= 0 {
		return
	}
	cutoff := now.Add(-s.config.MaxWindow)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pointsSince(cutoff)

	for i := range s.ring {
		s.ring[i] = Point{}
	}
	copy(s.ring, kept)
	s.head = len(kept) % len(s.ring)
	s.full = len(kept) == len(s.ring)
}
