package checkpoint

import (
	"sync"
	"time"
)

// StepMetadata is what a checkpoint remembers about one completed step.
// Outputs are replayed verbatim into a resumed run's output map.
type StepMetadata struct {
	Outputs         map[string]any `json:"outputs"`
	DurationSeconds float64        `json:"duration_seconds"`
	Cached          bool           `json:"cached"`
	Retries         int            `json:"retries"`
}

// Record is the full progress snapshot for one pipeline. It is keyed by
// pipeline name so a later Run can pick it up without knowing the
// previous run's ID; RunID records which run wrote it.
type Record struct {
	Pipeline          string                  `json:"pipeline"`
	RunID             string                  `json:"run_id"`
	LastCompletedStep string                  `json:"last_completed_step"`
	LastUpdate        time.Time               `json:"last_update"`
	CompletedSteps    []string                `json:"completed_steps"`
	StepMetadata      map[string]StepMetadata `json:"step_metadata"`
}

// NewRecord creates an empty record for a pipeline run.
func NewRecord(pipeline, runID string) *Record {
	return &Record{
		Pipeline:     pipeline,
		RunID:        runID,
		StepMetadata: make(map[string]StepMetadata),
	}
}

// Complete marks a step done, recording its outputs and timing.
func (r *Record) Complete(stepName string, meta StepMetadata) {
	if r.StepMetadata == nil {
		r.StepMetadata = make(map[string]StepMetadata)
	}
	if !r.IsCompleted(stepName) {
		r.CompletedSteps = append(r.CompletedSteps, stepName)
	}
	r.StepMetadata[stepName] = meta
	r.LastCompletedStep = stepName
	r.LastUpdate = time.Now().UTC()
}

// IsCompleted reports whether a step finished in this record.
func (r *Record) IsCompleted(stepName string) bool {
	_, ok := r.StepMetadata[stepName]
	return ok
}

// Outputs merges every completed step's outputs into one map, in
// completion order so later steps win on (illegal but possible after
// code changes) name collisions.
func (r *Record) Outputs() map[string]any {
	merged := make(map[string]any)
	for _, name := range r.CompletedSteps {
		for k, v := range r.StepMetadata[name].Outputs {
			merged[k] = v
		}
	}
	return merged
}

// Store persists checkpoint records keyed by pipeline name.
type Store interface {
	// Load returns the record for a pipeline, or false when none exists.
	Load(pipeline string) (*Record, bool, error)
	// Save writes a record, replacing any previous one for its pipeline.
	Save(record *Record) error
	// Reset removes the record for a pipeline.
	Reset(pipeline string) error
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Load(pipeline string) (*Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[pipeline]
	if !ok {
		return nil, false, nil
	}
	clone := *record
	clone.CompletedSteps = append([]string(nil), record.CompletedSteps...)
	clone.StepMetadata = make(map[string]StepMetadata, len(record.StepMetadata))
	for k, v := range record.StepMetadata {
		clone.StepMetadata[k] = v
	}
	return &clone, true, nil
}

func (s *MemoryStore) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	clone.CompletedSteps = append([]string(nil), record.CompletedSteps...)
	clone.StepMetadata = make(map[string]StepMetadata, len(record.StepMetadata))
	for k, v := range record.StepMetadata {
		clone.StepMetadata[k] = v
	}
	s.records[record.Pipeline] = &clone
	return nil
}

func (s *MemoryStore) Reset(pipeline string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, pipeline)
	return nil
}
