package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent = "component"
	FieldPipeline  = "pipeline"
	FieldStep      = "step"
	FieldGroup     = "group"
	FieldRunID     = "run_id"
	FieldBranch    = "branch"
	FieldAttempt   = "attempt"
	FieldRetries   = "retries"
	FieldCacheKey  = "cache_key"
	FieldState     = "state"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldOutput    = "output"
	FieldURI       = "uri"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("step done", logger.Fields("step", "train", "retries", 2))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for a step operation that failed.
func ErrorFields(step string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldStep:  step,
		FieldError: err.Error(),
	}
}

// DurationFields creates fields for a timed step.
func DurationFields(step string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldStep:     step,
		FieldDuration: d.Milliseconds(),
	}
}

// MergeWithError adds an error field to an existing map.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldError] = err.Error()
	return fields
}
