package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kbukum/flowkit/logger"
)

// LocalStore persists cache entries as one JSON file per key under a
// directory, so cached results survive process restarts. Entries whose
// values do not round-trip through JSON are not persisted; callers fall
// back to re-executing the step.
type LocalStore struct {
	dir string
	log *logger.Logger
	mu  sync.Mutex
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string, log *logger.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LocalStore{dir: dir, log: log.WithComponent("cache")}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *LocalStore) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.log.Warn("discarding unreadable cache entry", map[string]any{
			logger.FieldCacheKey: key,
			logger.FieldError:    err.Error(),
		})
		return Entry{}, false
	}
	return entry, true
}

func (s *LocalStore) Set(key string, value any, stepName, codeHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Key:      key,
		StepName: stepName,
		CodeHash: codeHash,
		Value:    value,
		StoredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn("cache entry not persistable", map[string]any{
			logger.FieldStep:     stepName,
			logger.FieldCacheKey: key,
			logger.FieldError:    err.Error(),
		})
		return
	}

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Warn("cache write failed", map[string]any{
			logger.FieldCacheKey: key,
			logger.FieldError:    err.Error(),
		})
		return
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		s.log.Warn("cache rename failed", map[string]any{
			logger.FieldCacheKey: key,
			logger.FieldError:    err.Error(),
		})
	}
}
