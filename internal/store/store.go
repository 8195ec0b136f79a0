package store

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// Store hands out the historical tables by file path. Tables for the same
// path are shared, so every reader and writer of a file goes through one lock.
type Store struct {
	mu       sync.Mutex
	loc      *time.Location
	current  map[string]*Table[weather.CurrentObservation]
	forecast map[string]*Table[weather.ForecastObservation]
}

// New creates a Store that filters dates in loc (nil = time.Local).
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		loc:      loc,
		current:  make(map[string]*Table[weather.CurrentObservation]),
		forecast: make(map[string]*Table[weather.ForecastObservation]),
	}
}

// Location returns the time zone used for date filters.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Current returns the current observations table stored at path.
func (s *Store) Current(path string) *Table[weather.CurrentObservation] {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tableKey(path)
	t, ok := s.current[key]
	if !ok {
		t = NewTable(path, CurrentSchema(s.loc), s.loc)
		s.current[key] = t
	}
	return t
}

// Forecast returns the forecast table stored at path.
func (s *Store) Forecast(path string) *Table[weather.ForecastObservation] {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tableKey(path)
	t, ok := s.forecast[key]
	if !ok {
		t = NewTable(path, ForecastSchema(s.loc), s.loc)
		s.forecast[key] = t
	}
	return t
}

func tableKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
