package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleRecord() *Record {
	r := NewRecord("training", "run-1")
	r.Complete("prepare", StepMetadata{
		Outputs:         map[string]any{"dataset": "mnist"},
		DurationSeconds: 1.5,
	})
	r.Complete("train", StepMetadata{
		Outputs:         map[string]any{"model": "m-42", "score": 0.97},
		DurationSeconds: 42.0,
		Cached:          false,
		Retries:         1,
	})
	return r
}

func TestRecord_Complete(t *testing.T) {
	r := sampleRecord()
	if r.LastCompletedStep != "train" {
		t.Errorf("LastCompletedStep = %q", r.LastCompletedStep)
	}
	if !r.IsCompleted("prepare") || r.IsCompleted("evaluate") {
		t.Error("completion tracking broken")
	}
	if len(r.CompletedSteps) != 2 {
		t.Errorf("CompletedSteps = %v", r.CompletedSteps)
	}

	// Re-completing a step must not duplicate it.
	r.Complete("prepare", StepMetadata{Outputs: map[string]any{"dataset": "cifar"}})
	if len(r.CompletedSteps) != 2 {
		t.Errorf("CompletedSteps after re-complete = %v", r.CompletedSteps)
	}
}

func TestRecord_Outputs(t *testing.T) {
	outputs := sampleRecord().Outputs()
	if outputs["dataset"] != "mnist" || outputs["model"] != "m-42" {
		t.Errorf("Outputs = %v", outputs)
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	s := NewMemoryStore()
	if _, ok, _ := s.Load("training"); ok {
		t.Error("empty store must miss")
	}

	original := sampleRecord()
	if err := s.Save(original); err != nil {
		t.Fatal(err)
	}

	// Mutating the original must not leak into the stored copy.
	original.Complete("evaluate", StepMetadata{})

	loaded, ok, err := s.Load("training")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if loaded.IsCompleted("evaluate") {
		t.Error("store must hold an isolated copy")
	}

	if err := s.Reset("training"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load("training"); ok {
		t.Error("Reset must remove the record")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Save(sampleRecord()); err != nil {
		t.Fatal(err)
	}

	loaded, ok, err := s.Load("training")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if loaded.RunID != "run-1" || loaded.LastCompletedStep != "train" {
		t.Errorf("record = %+v", loaded)
	}
	meta := loaded.StepMetadata["train"]
	if meta.Retries != 1 || meta.DurationSeconds != 42.0 {
		t.Errorf("train metadata = %+v", meta)
	}
	if meta.Outputs["model"] != "m-42" {
		t.Errorf("train outputs = %v", meta.Outputs)
	}

	if err := s.Reset("training"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load("training"); ok {
		t.Error("Reset must remove the file")
	}
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(sampleRecord()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("stray temp file %s", filepath.Join(dir, e.Name()))
		}
	}
}

func TestFileStore_SanitizesPipelineName(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRecord("team/training", "run-9")
	r.Complete("train", StepMetadata{Outputs: map[string]any{"model": "m"}})
	if err := s.Save(r); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Load("team/training"); err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
}
