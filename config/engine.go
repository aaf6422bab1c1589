package config

import (
	"fmt"
	"time"

	"github.com/kbukum/flowkit/logger"
)

// Config is the engine's full configuration.
type Config struct {
	// Project tags artifacts and run metadata.
	Project string `yaml:"project" mapstructure:"project"`
	// Environment selects deployment-specific defaults.
	Environment string `yaml:"environment" mapstructure:"environment"`

	// CheckpointDir holds checkpoint files. Empty disables resume.
	CheckpointDir string `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`
	// CacheDir holds the on-disk result cache. Empty keeps the cache
	// in memory.
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
	// ArtifactDir holds materialized outputs. Empty discards them.
	ArtifactDir string `yaml:"artifact_dir" mapstructure:"artifact_dir"`
	// PipelineDirs are searched for YAML pipeline definitions.
	PipelineDirs []string `yaml:"pipeline_dirs" mapstructure:"pipeline_dirs"`

	// StopWatchInterval is how often a run polls its stop flag.
	StopWatchInterval time.Duration `yaml:"stop_watch_interval" mapstructure:"stop_watch_interval"`
	// TriggerInterval schedules recurring runs. Zero disables the
	// trigger.
	TriggerInterval time.Duration `yaml:"trigger_interval" mapstructure:"trigger_interval"`

	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

// ApplyDefaults fills unset fields with engine defaults.
func (c *Config) ApplyDefaults() {
	if c.Project == "" {
		c.Project = "default"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.StopWatchInterval == 0 {
		c.StopWatchInterval = 500 * time.Millisecond
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}
	if c.StopWatchInterval < 0 {
		return fmt.Errorf("config.stop_watch_interval must not be negative")
	}
	if c.TriggerInterval < 0 {
		return fmt.Errorf("config.trigger_interval must not be negative")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
