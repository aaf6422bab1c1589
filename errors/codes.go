package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Graph construction errors (fatal, abort pipeline construction)
const (
	// ErrCodeGraphCycle indicates the dependency graph contains a cycle.
	ErrCodeGraphCycle ErrorCode = "GRAPH_CYCLE"
	// ErrCodeMissingProducer indicates a step input has no producing step
	// and is not covered by the run's external inputs.
	ErrCodeMissingProducer ErrorCode = "MISSING_PRODUCER"
	// ErrCodeDuplicateProducer indicates two steps declare the same output name.
	ErrCodeDuplicateProducer ErrorCode = "DUPLICATE_PRODUCER"
	// ErrCodeDuplicateStep indicates two steps share the same name.
	ErrCodeDuplicateStep ErrorCode = "DUPLICATE_STEP"
)

// Execution errors
const (
	// ErrCodeStepExecution indicates a step callable failed after exhausting retries.
	ErrCodeStepExecution ErrorCode = "STEP_EXECUTION_FAILED"
	// ErrCodeStoppedByRequest indicates execution was interrupted by an
	// explicit stop request. Never retried.
	ErrCodeStoppedByRequest ErrorCode = "STOPPED_BY_REQUEST"
	// ErrCodeParameterBinding indicates a required callable parameter could not
	// be resolved. A configuration fault, never retried.
	ErrCodeParameterBinding ErrorCode = "PARAMETER_BINDING_FAILED"
	// ErrCodeStepTimeout indicates a step exceeded its configured deadline.
	ErrCodeStepTimeout ErrorCode = "STEP_TIMEOUT"
)

// Non-fatal evaluation errors (degrade gracefully)
const (
	// ErrCodeGuardEvaluation indicates a guard predicate could not be evaluated.
	// The step is skipped, never failed.
	ErrCodeGuardEvaluation ErrorCode = "GUARD_EVALUATION_FAILED"
	// ErrCodeBranchEvaluation indicates a conditional branch predicate raised
	// an error. The branch falls back to its else step.
	ErrCodeBranchEvaluation ErrorCode = "BRANCH_EVALUATION_FAILED"
)

// Best-effort persistence errors (logged and swallowed)
const (
	// ErrCodeMaterialization indicates the artifact store failed to persist an output.
	ErrCodeMaterialization ErrorCode = "MATERIALIZATION_FAILED"
	// ErrCodeCheckpointWrite indicates a checkpoint could not be persisted.
	ErrCodeCheckpointWrite ErrorCode = "CHECKPOINT_WRITE_FAILED"
)

// Definition errors
const (
	// ErrCodeValidation indicates an invalid step or pipeline definition.
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"
	// ErrCodeNotFound indicates a referenced step, callable or run was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInternal indicates an internal engine fault.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeStepExecution: true,
	ErrCodeStepTimeout:   true,
}

// IsRetryableCode reports whether an error code is retryable by default.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

var fatalCodes = map[ErrorCode]bool{
	ErrCodeGraphCycle:        true,
	ErrCodeMissingProducer:   true,
	ErrCodeDuplicateProducer: true,
	ErrCodeDuplicateStep:     true,
	ErrCodeStepExecution:     true,
	ErrCodeStoppedByRequest:  true,
	ErrCodeParameterBinding:  true,
	ErrCodeStepTimeout:       true,
}

// IsFatalCode reports whether an error code stops a pipeline run.
// Everything else degrades gracefully: guards skip, branches fall back to
// their else step, materialization and checkpoint writes are best-effort.
func IsFatalCode(code ErrorCode) bool {
	return fatalCodes[code]
}
