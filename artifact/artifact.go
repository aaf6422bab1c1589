// Package artifact persists step outputs and run metadata outside the
// engine, so results outlive the process that produced them.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbukum/flowkit/errors"
)

// Store materializes step outputs and records run metadata.
type Store interface {
	// Materialize persists one named output of a step and returns a URI
	// that locates the stored value.
	Materialize(ctx context.Context, value any, name, runID, stepName, project string) (string, error)
	// SaveRun records run-level metadata after a run finishes.
	SaveRun(ctx context.Context, runID string, metadata map[string]any) error
}

// NopStore discards everything. It is the default when no artifact
// backend is configured.
type NopStore struct{}

func (NopStore) Materialize(_ context.Context, _ any, name, runID, _, _ string) (string, error) {
	return fmt.Sprintf("nop://%s/%s", runID, name), nil
}

func (NopStore) SaveRun(context.Context, string, map[string]any) error { return nil }

// LocalStore writes artifacts as JSON files under
// <root>/<project>/<runID>/ and returns file:// URIs.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Materialize(ctx context.Context, value any, name, runID, stepName, project string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if project == "" {
		project = "default"
	}

	dir := filepath.Join(s.root, project, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Materialization(stepName, name, err)
	}

	payload := map[string]any{
		"name":  name,
		"step":  stepName,
		"value": value,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", errors.Materialization(stepName, name, err)
	}

	target := filepath.Join(dir, name+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.Materialization(stepName, name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", errors.Materialization(stepName, name, err)
	}
	return "file://" + target, nil
}

func (s *LocalStore) SaveRun(ctx context.Context, runID string, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.New(errors.ErrCodeInternal, "encoding run metadata").WithCause(err)
	}
	dir := filepath.Join(s.root, "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeInternal, "creating run metadata directory").WithCause(err)
	}
	return os.WriteFile(filepath.Join(dir, runID+".json"), data, 0o644)
}
