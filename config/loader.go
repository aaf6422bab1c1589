package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load assembles the engine configuration: YAML file first, then .env,
// then process environment variables, later sources overriding earlier
// ones. Missing files are not an error; defaults and validation run
// last.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = RealFileSystem{}
	}
	if lc.ConfigFile == "" {
		lc.ConfigFile = findFirst(lc.FileSystem, "flowkit.yml", "flowkit.yaml", "config/flowkit.yml")
	}
	if lc.EnvFile == "" {
		lc.EnvFile = findFirst(lc.FileSystem, ".env.flowkit", ".env")
	}

	v := viper.New()
	if lc.ConfigFile != "" && lc.FileSystem.Exists(lc.ConfigFile) {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", lc.ConfigFile, err)
		}
	}

	if lc.EnvFile != "" && lc.FileSystem.Exists(lc.EnvFile) {
		if err := lc.FileSystem.LoadEnv(lc.EnvFile); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", lc.EnvFile, err)
		}
	}

	v.SetEnvPrefix("FLOWKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findFirst(fs FileSystem, candidates ...string) string {
	for _, path := range candidates {
		if fs.Exists(path) {
			return path
		}
	}
	return ""
}

// bindEnvKeys registers every config key with Viper so AutomaticEnv
// sees FLOWKIT_* variables even when no config file set the key.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"project",
		"environment",
		"checkpoint_dir",
		"cache_dir",
		"artifact_dir",
		"pipeline_dirs",
		"stop_watch_interval",
		"trigger_interval",
		"logging.level",
		"logging.format",
		"logging.output",
		"logging.no_color",
		"logging.timestamp",
		"logging.caller",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
