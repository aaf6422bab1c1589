package logger

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" {
		t.Errorf("expected default level info, got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected default format console, got %q", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "debug", Format: "json"}, false},
		{"bad level", Config{Level: "loud", Format: "json"}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("step", "train", "retries", 2)
	if m["step"] != "train" || m["retries"] != 2 {
		t.Errorf("unexpected fields: %v", m)
	}
	// odd trailing value is dropped
	m = Fields("a", 1, "dangling")
	if len(m) != 1 {
		t.Errorf("expected 1 field, got %v", m)
	}
}

func TestDurationFields(t *testing.T) {
	m := DurationFields("train", 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}
}

func TestLogger_Chaining(t *testing.T) {
	// Chained loggers must not panic and must be independent.
	base := Nop()
	l := base.WithComponent("executor").WithRun("training", "run-1").WithStep("train")
	l.Info("running")
	l.Warn("retrying", Fields(FieldAttempt, 2))
	base.Debug("base untouched")
}
