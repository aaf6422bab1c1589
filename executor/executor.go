package executor

import (
	"context"
	"time"

	"github.com/kbukum/flowkit/artifact"
	"github.com/kbukum/flowkit/cache"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/step"
)

// Result describes one step execution attempt cycle.
type Result struct {
	StepName   string
	Success    bool
	Output     any
	Outputs    map[string]any
	Err        error
	Duration   time.Duration
	Cached     bool
	Skipped    bool
	SkipReason string
	// Retries counts re-executions after the first attempt.
	Retries int
	// ArtifactURIs locates materialized outputs, keyed by output name.
	ArtifactURIs map[string]string
}

// Executor runs steps against a cache and an artifact store.
type Executor struct {
	log       *logger.Logger
	cache     cache.Store
	artifacts artifact.Store
	project   string
	policy    func(retryLimit int) resilience.RetryConfig
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache sets the result cache. Nil disables caching.
func WithCache(store cache.Store) Option {
	return func(e *Executor) { e.cache = store }
}

// WithArtifacts sets the artifact backend.
func WithArtifacts(store artifact.Store) Option {
	return func(e *Executor) { e.artifacts = store }
}

// WithProject tags materialized artifacts with a project name.
func WithProject(name string) Option {
	return func(e *Executor) { e.project = name }
}

// WithRetryPolicy overrides how a step's retry limit maps to a backoff
// schedule.
func WithRetryPolicy(policy func(retryLimit int) resilience.RetryConfig) Option {
	return func(e *Executor) { e.policy = policy }
}

// New creates an Executor. By default it caches in memory and discards
// artifacts.
func New(log *logger.Logger, opts ...Option) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	e := &Executor{
		log:       log.WithComponent("executor"),
		cache:     cache.NewMemoryStore(),
		artifacts: artifact.NopStore{},
		policy:    resilience.StepBackoffConfig,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteStep runs one step to completion. The available map supplies
// parameter values by name; runID tags materialized artifacts.
//
// The order of concerns is fixed: guard first, then cache lookup, then
// retried execution, then materialization and cache write. A false or
// failing guard skips the step without error; a cache hit returns the
// stored value without invoking the callable.
func (e *Executor) ExecuteStep(ctx context.Context, s *step.Step, available map[string]any, runID string) Result {
	log := e.log.WithStep(s.Name())
	result := Result{StepName: s.Name()}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	if skip, reason := e.evaluateGuard(s, available, log); skip {
		result.Skipped = true
		result.SkipReason = reason
		return result
	}

	key := e.cacheKey(s, available)
	if key != "" {
		if entry, ok := e.cache.Get(key); ok {
			log.Info("cache hit", map[string]any{logger.FieldCacheKey: key})
			result.Success = true
			result.Cached = true
			result.Output = entry.Value
			result.Outputs, result.Err = s.SplitOutputs(entry.Value)
			if result.Err != nil {
				result.Success = false
			}
			return result
		}
	}

	args, err := e.bindParams(s, available)
	if err != nil {
		result.Err = err
		return result
	}

	cfg := e.policy(s.RetryLimit())
	cfg.RetryIf = retryable
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		result.Retries++
		log.Warn("step failed, retrying", map[string]any{
			logger.FieldAttempt:  attempt,
			logger.FieldError:    err.Error(),
			logger.FieldDuration: backoff.String(),
		})
	}

	output, err := resilience.Retry(ctx, cfg, func() (any, error) {
		return e.attempt(ctx, s, args)
	})
	if err != nil {
		result.Err = e.classify(ctx, s, err)
		log.Error("step failed", map[string]any{
			logger.FieldRetries: result.Retries,
			logger.FieldError:   result.Err.Error(),
		})
		return result
	}

	outputs, err := s.SplitOutputs(output)
	if err != nil {
		result.Err = err
		return result
	}

	result.Success = true
	result.Output = output
	result.Outputs = outputs
	result.ArtifactURIs = e.materialize(ctx, s, outputs, runID, log)

	if key != "" {
		e.cache.Set(key, output, s.Name(), s.Callable().Fingerprint)
	}
	log.Info("step completed", map[string]any{
		logger.FieldRetries:  result.Retries,
		logger.FieldDuration: time.Since(start).String(),
	})
	return result
}

// attempt runs the callable once, honoring the step's per-attempt
// timeout and a pending stop request.
func (e *Executor) attempt(ctx context.Context, s *step.Step, args map[string]any) (any, error) {
	if cause := context.Cause(ctx); cause != nil && errors.HasCode(cause, errors.ErrCodeStoppedByRequest) {
		return nil, cause
	}

	attemptCtx := ctx
	if s.Timeout() > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.Timeout())
		defer cancel()
	}

	output, err := s.Invoke(attemptCtx, args)
	if err != nil {
		if s.Timeout() > 0 && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.Newf(errors.ErrCodeStepTimeout,
				"step %q exceeded its %s timeout", s.Name(), s.Timeout()).WithCause(err)
		}
		return nil, err
	}
	return output, nil
}

// classify wraps a raw failure into the engine's error taxonomy,
// preserving errors that already carry a code.
func (e *Executor) classify(ctx context.Context, s *step.Step, err error) error {
	if cause := context.Cause(ctx); cause != nil && errors.HasCode(cause, errors.ErrCodeStoppedByRequest) {
		return cause
	}
	var engineErr *errors.EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	return errors.StepExecution(s.Name(), err)
}

// retryable excludes stop requests, binding faults and context
// cancellation from retry.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeStoppedByRequest, errors.ErrCodeParameterBinding, errors.ErrCodeValidation:
		return false
	case errors.ErrCodeStepTimeout:
		// The deadline was per-attempt; the next attempt gets a fresh one.
		return true
	}
	return resilience.DefaultRetryIf(err)
}

// evaluateGuard runs the step's guard when one is declared. A false
// result skips the step; so does a guard error, recorded as a warning
// rather than failing the run.
func (e *Executor) evaluateGuard(s *step.Step, available map[string]any, log *logger.Logger) (bool, string) {
	guard := s.Guard()
	if guard == nil {
		return false, ""
	}

	args := make(map[string]any, len(guard.Params))
	for _, param := range guard.Params {
		if v, ok := available[param]; ok {
			args[param] = v
		}
	}

	ok, err := guard.Fn(args)
	if err != nil {
		log.Warn("guard evaluation failed, skipping step", map[string]any{
			logger.FieldError: errors.GuardEvaluation(s.Name(), err).Error(),
		})
		return true, "guard evaluation failed: " + err.Error()
	}
	if !ok {
		log.Info("guard declined, skipping step")
		return true, "guard returned false"
	}
	return false, ""
}

// cacheKey derives the step's cache key, or "" when caching is off.
func (e *Executor) cacheKey(s *step.Step, available map[string]any) string {
	if e.cache == nil {
		return ""
	}
	switch s.CachePolicy() {
	case step.CacheByInputs:
		args, err := e.bindParams(s, available)
		if err != nil {
			return ""
		}
		return cache.InputKey(s.Name(), args)
	case step.CacheByCode:
		return cache.CodeKey(s.Name(), s.Callable().Fingerprint)
	default:
		return ""
	}
}

// bindParams resolves every declared callable parameter by name.
func (e *Executor) bindParams(s *step.Step, available map[string]any) (map[string]any, error) {
	params := s.Callable().Params
	args := make(map[string]any, len(params))
	for _, param := range params {
		v, ok := available[param]
		if !ok {
			return nil, errors.ParameterBinding(s.Name(), param)
		}
		args[param] = v
	}
	return args, nil
}

// materialize persists each output, logging failures without failing
// the step.
func (e *Executor) materialize(ctx context.Context, s *step.Step, outputs map[string]any, runID string, log *logger.Logger) map[string]string {
	if e.artifacts == nil || len(outputs) == 0 {
		return nil
	}
	uris := make(map[string]string, len(outputs))
	for name, value := range outputs {
		uri, err := e.artifacts.Materialize(ctx, value, name, runID, s.Name(), e.project)
		if err != nil {
			log.Warn("output materialization failed", map[string]any{
				logger.FieldOutput: name,
				logger.FieldError:  errors.Materialization(s.Name(), name, err).Error(),
			})
			continue
		}
		uris[name] = uri
		log.Debug("output materialized", map[string]any{
			logger.FieldOutput: name,
			logger.FieldURI:    uri,
		})
	}
	return uris
}
