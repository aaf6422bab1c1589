package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kbukum/flowkit/errors"
)

// FileStore persists one JSON checkpoint file per pipeline under a
// directory. Writes go through a temp file plus rename so a crash
// mid-write never leaves a truncated checkpoint behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "creating checkpoint directory").WithCause(err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(pipeline string) string {
	// Pipeline names may contain separators; flatten them.
	safe := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(pipeline)
	return filepath.Join(s.dir, safe+".checkpoint.json")
}

func (s *FileStore) Load(pipeline string) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(pipeline))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New(errors.ErrCodeInternal, "reading checkpoint").WithCause(err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, errors.New(errors.ErrCodeInternal, "decoding checkpoint").WithCause(err)
	}
	if record.StepMetadata == nil {
		record.StepMetadata = make(map[string]StepMetadata)
	}
	return &record, true, nil
}

func (s *FileStore) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.CheckpointWrite(record.RunID, err)
	}

	target := s.path(record.Pipeline)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.CheckpointWrite(record.RunID, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return errors.CheckpointWrite(record.RunID, err)
	}
	return nil
}

func (s *FileStore) Reset(pipeline string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(pipeline)); err != nil && !os.IsNotExist(err) {
		return errors.New(errors.ErrCodeInternal, "removing checkpoint").WithCause(err)
	}
	return nil
}
