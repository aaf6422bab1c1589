package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Project != "default" {
		t.Errorf("Project = %q", cfg.Project)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.StopWatchInterval != 500*time.Millisecond {
		t.Errorf("StopWatchInterval = %v", cfg.StopWatchInterval)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "environment"},
		{"negative watch interval", func(c *Config) { c.StopWatchInterval = -time.Second }, "stop_watch_interval"},
		{"negative trigger interval", func(c *Config) { c.TriggerInterval = -time.Second }, "trigger_interval"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowkit.yml")
	content := `
project: vision
environment: production
checkpoint_dir: /var/lib/flowkit/checkpoints
trigger_interval: 1m
logging:
  level: warn
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project != "vision" || cfg.Environment != "production" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TriggerInterval != time.Minute {
		t.Errorf("TriggerInterval = %v", cfg.TriggerInterval)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowkit.yml")
	if err := os.WriteFile(path, []byte("project: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOWKIT_PROJECT", "from-env")

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project != "from-env" {
		t.Errorf("Project = %q, want env to win", cfg.Project)
	}
}

func TestLoad_MissingFilesUseDefaults(t *testing.T) {
	cfg, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "absent.yml")))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project != "default" {
		t.Errorf("Project = %q", cfg.Project)
	}
}

type fakeFS struct {
	files map[string]bool
	envs  []string
}

func (f *fakeFS) Exists(path string) bool { return f.files[path] }
func (f *fakeFS) LoadEnv(path string) error {
	f.envs = append(f.envs, path)
	return nil
}

func TestLoad_SearchesStandardLocations(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{".env.flowkit": true}}
	if _, err := Load(WithFileSystem(fs)); err != nil {
		t.Fatal(err)
	}
	if len(fs.envs) != 1 || fs.envs[0] != ".env.flowkit" {
		t.Errorf("loaded env files = %v", fs.envs)
	}
}
