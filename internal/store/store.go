// Package store keeps the ordered sequence of recorded pointer samples.
package store

import "sync"

// Sample is one recorded pointer position
type Sample struct {
	X int `json:"x"`
	Y int `json:"y"`

	// Timestamp is the capture time in Unix seconds
	Timestamp float64 `json:"timestamp"`

	// SessionID groups samples from one start/stop interval (empty if unknown)
	SessionID string `json:"session"`
}

// Store is an append-only, insertion-ordered sample sequence.
// Append may be called from the capture goroutine while All is read elsewhere.
type Store struct {
	mu      sync.RWMutex
	samples []Sample
}

// New creates an empty store
func New() *Store {
	return &Store{samples: make([]Sample, 0, 1024)}
}

// Append adds a sample to the end of the sequence
func (s *Store) Append(sample Sample) {
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()
}

// All returns a snapshot of every sample in insertion order
func (s *Store) All() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Len returns the number of stored samples
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Clear empties the store
func (s *Store) Clear() {
	s.mu.Lock()
	s.samples = make([]Sample, 0, 1024)
	s.mu.Unlock()
}

// Replace swaps the content for samples, e.g. after loading from disk
func (s *Store) Replace(samples []Sample) {
	cp := make([]Sample, len(samples))
	copy(cp, samples)

	s.mu.Lock()
	s.samples = cp
	s.mu.Unlock()
}

// Sessions returns the distinct session ids in first-seen order
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, sample := range s.samples {
		if seen[sample.SessionID] {
			continue
		}
		seen[sample.SessionID] = true
		ids = append(ids, sample.SessionID)
	}
	return ids
}
