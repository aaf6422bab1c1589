// Package config loads engine configuration from YAML files and
// environment variables.
//
// It uses Viper for file and environment binding and godotenv for .env
// files. Environment variables override file values using
// underscore-separated paths (e.g. FLOWKIT_CHECKPOINT_DIR).
package config
