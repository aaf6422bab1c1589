// Package cache provides result caching for step executions keyed by
// either the step's resolved inputs or its code fingerprint.
package cache
