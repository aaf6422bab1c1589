package cache

import (
	"sync"
	"time"
)

// Entry is one cached step result with enough provenance to explain a
// hit in logs and run metadata.
type Entry struct {
	Key      string    `json:"key"`
	StepName string    `json:"step_name"`
	CodeHash string    `json:"code_hash,omitempty"`
	Value    any       `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Store holds cached step results.
type Store interface {
	// Get returns the entry for a key, or false when absent.
	Get(key string) (Entry, bool)
	// Set records a result under a key, replacing any previous entry.
	Set(key string, value any, stepName, codeHash string)
}

// MemoryStore is an in-process Store safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *MemoryStore) Set(key string, value any, stepName, codeHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{
		Key:      key,
		StepName: stepName,
		CodeHash: codeHash,
		Value:    value,
		StoredAt: time.Now().UTC(),
	}
}

// Len reports the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops every entry.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}
