package store

import (
	"context"
	"sync"

	"github.com/onnwee/foryou/internal/social"
)

// MemoryPreferenceStore is an in-memory implementation of PreferenceStore.
// Thread-safe via RWMutex.
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]social.AlgorithmPreferences
}

// NewMemoryPreferenceStore creates a new in-memory preference store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{
		prefs: make(map[string]social.AlgorithmPreferences),
	}
}

// Get returns the stored preferences for a user, or the defaults when none
// are stored.
func (s *MemoryPreferenceStore) Get(_ context.Context, userID string) (social.AlgorithmPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return social.DefaultPreferences(), nil
}

// Put stores preferences for a user, replacing any previous value.
func (s *MemoryPreferenceStore) Put(_ context.Context, userID string, prefs social.AlgorithmPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs[userID] = prefs
	return nil
}
