// Package errors provides structured error handling for the pipeline engine.
// It implements a fixed error taxonomy with machine-readable codes, retryable
// detection, and a fatal/graceful propagation split.
package errors

import (
	"errors"
	"fmt"
)

// EngineError is the unified engine error type.
type EngineError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *EngineError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *EngineError) WithCause(cause error) *EngineError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *EngineError) WithDetails(details map[string]any) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *EngineError) WithDetail(key string, value any) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new EngineError with automatic retryable detection.
func New(code ErrorCode, message string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Newf creates a new EngineError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *EngineError {
	return New(code, fmt.Sprintf(format, args...))
}

// --- Common Error Constructors ---

// GraphCycle creates an error for a dependency cycle through the named steps.
func GraphCycle(path []string) *EngineError {
	return &EngineError{
		Code: ErrCodeGraphCycle, Message: "dependency graph contains a cycle",
		Details: map[string]any{"path": path},
	}
}

// MissingProducer creates an error for an input no step produces.
func MissingProducer(stepName, input string) *EngineError {
	return &EngineError{
		Code:    ErrCodeMissingProducer,
		Message: fmt.Sprintf("step %q requires input %q but no step produces it and it is not an external input", stepName, input),
		Details: map[string]any{"step": stepName, "input": input},
	}
}

// DuplicateProducer creates an error for an output declared by two steps.
func DuplicateProducer(output, first, second string) *EngineError {
	return &EngineError{
		Code:    ErrCodeDuplicateProducer,
		Message: fmt.Sprintf("output %q is declared by both %q and %q", output, first, second),
		Details: map[string]any{"output": output, "steps": []string{first, second}},
	}
}

// StepExecution creates a retryable error for a failed step callable.
func StepExecution(stepName string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeStepExecution,
		Message: fmt.Sprintf("step %q failed", stepName),
		Retryable: true, Cause: cause,
		Details: map[string]any{"step": stepName},
	}
}

// StoppedByRequest creates a non-retryable error for an interrupted
// step. An empty step name marks a run-level stop.
func StoppedByRequest(stepName string) *EngineError {
	message := "run was stopped by request"
	if stepName != "" {
		message = fmt.Sprintf("step %q was stopped by request", stepName)
	}
	return &EngineError{
		Code:    ErrCodeStoppedByRequest,
		Message: message,
		Details: map[string]any{"step": stepName},
	}
}

// ParameterBinding creates an error for an unresolvable callable parameter.
func ParameterBinding(stepName, param string) *EngineError {
	return &EngineError{
		Code:    ErrCodeParameterBinding,
		Message: fmt.Sprintf("step %q: no value for required parameter %q", stepName, param),
		Details: map[string]any{"step": stepName, "parameter": param},
	}
}

// GuardEvaluation creates a non-fatal error for a failed guard predicate.
func GuardEvaluation(stepName string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeGuardEvaluation,
		Message: fmt.Sprintf("guard for step %q could not be evaluated", stepName),
		Cause:   cause,
		Details: map[string]any{"step": stepName},
	}
}

// BranchEvaluation creates a non-fatal error for a failed branch predicate.
func BranchEvaluation(branch string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeBranchEvaluation,
		Message: fmt.Sprintf("branch %q predicate raised an error", branch),
		Cause:   cause,
		Details: map[string]any{"branch": branch},
	}
}

// Materialization creates a swallowed error for a failed artifact write.
func Materialization(stepName, output string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeMaterialization,
		Message: fmt.Sprintf("failed to materialize output %q of step %q", output, stepName),
		Cause:   cause,
		Details: map[string]any{"step": stepName, "output": output},
	}
}

// CheckpointWrite creates a swallowed error for a failed checkpoint write.
func CheckpointWrite(runID string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeCheckpointWrite,
		Message: fmt.Sprintf("failed to persist checkpoint for run %q", runID),
		Cause:   cause,
		Details: map[string]any{"run_id": runID},
	}
}

// Validation creates an error for an invalid definition.
func Validation(message string) *EngineError {
	return New(ErrCodeValidation, message)
}

// NotFound creates an error for a missing resource.
func NotFound(resource, name string) *EngineError {
	return &EngineError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, name),
		Details: map[string]any{"resource": resource, "name": name},
	}
}

// Internal creates an error for an internal engine fault.
func Internal(message string, cause error) *EngineError {
	return &EngineError{Code: ErrCodeInternal, Message: message, Cause: cause}
}

// --- Inspection helpers ---

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// IsFatal checks if an error should stop a pipeline run.
// Unknown (non-engine) errors are treated as fatal.
func IsFatal(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return IsFatalCode(ee.Code)
	}
	return true
}

// CodeOf extracts the error code, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrCodeInternal
}

// HasCode checks whether any error in the chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// As is a convenience re-export of errors.As for callers that alias this package.
func As(err error, target any) bool { return errors.As(err, target) }

// Is is a convenience re-export of errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }
