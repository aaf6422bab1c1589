package step

import (
	"context"
	"time"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/resources"
	"github.com/kbukum/flowkit/validation"
)

// CachePolicy controls how a step's results are cached.
type CachePolicy string

const (
	// CacheOff disables caching for the step.
	CacheOff CachePolicy = "off"
	// CacheByInputs keys the cache on a hash of the step's resolved inputs.
	CacheByInputs CachePolicy = "inputs"
	// CacheByCode keys the cache on the callable's code fingerprint.
	CacheByCode CachePolicy = "code"
)

// Callable is user code with an explicit named-parameter contract.
// Params lists the parameter names in declaration order; the engine
// resolves each one by name against step inputs, then external
// parameters. Fingerprint identifies the code version and feeds the
// code-hash cache policy.
type Callable struct {
	Params      []string
	Fingerprint string
	Fn          func(ctx context.Context, args map[string]any) (any, error)
}

// Guard is a predicate deciding whether a step runs at all. Its
// parameters are resolved by name like a callable's; a false result or
// an evaluation error both skip the step without failing the run.
type Guard struct {
	Params []string
	Fn     func(args map[string]any) (bool, error)
}

// Step is a named, immutable unit of work.
type Step struct {
	name        string
	inputs      []string
	outputs     []string
	callable    Callable
	cachePolicy CachePolicy
	retryLimit  int
	group       string
	resources   *resources.Requirements
	guard       *Guard
	timeout     time.Duration
}

// Option configures a Step at construction time.
type Option func(*Step)

// WithInputs declares the named inputs the step consumes.
func WithInputs(names ...string) Option {
	return func(s *Step) { s.inputs = append([]string(nil), names...) }
}

// WithOutputs declares the named outputs the step produces.
func WithOutputs(names ...string) Option {
	return func(s *Step) { s.outputs = append([]string(nil), names...) }
}

// WithCache sets the cache policy.
func WithCache(policy CachePolicy) Option {
	return func(s *Step) { s.cachePolicy = policy }
}

// WithRetries sets how many times a failed execution is retried.
func WithRetries(limit int) Option {
	return func(s *Step) { s.retryLimit = limit }
}

// WithGroup tags the step for shared-environment execution.
func WithGroup(name string) Option {
	return func(s *Step) { s.group = name }
}

// WithResources declares the step's compute requirements.
func WithResources(req *resources.Requirements) Option {
	return func(s *Step) { s.resources = req }
}

// WithGuard attaches a guard predicate.
func WithGuard(g Guard) Option {
	return func(s *Step) { s.guard = &g }
}

// WithTimeout bounds a single execution attempt with a deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Step) { s.timeout = d }
}

// New constructs a validated, immutable Step.
func New(name string, callable Callable, opts ...Option) (*Step, error) {
	s := &Step{
		name:        name,
		callable:    callable,
		cachePolicy: CacheOff,
	}
	for _, opt := range opts {
		opt(s)
	}

	v := validation.New()
	v.Required("name", s.name)
	if s.callable.Fn == nil {
		v.AddError("callable", "function is required")
	}
	if s.retryLimit < 0 {
		v.AddError("retries", "must be non-negative")
	}
	switch s.cachePolicy {
	case CacheOff, CacheByInputs, CacheByCode:
	default:
		v.AddError("cache", "unknown policy "+string(s.cachePolicy))
	}
	if s.cachePolicy == CacheByCode && s.callable.Fingerprint == "" {
		v.AddError("cache", "code-hash caching requires a callable fingerprint")
	}
	seen := make(map[string]bool, len(s.outputs))
	for _, out := range s.outputs {
		if out == "" {
			v.AddError("outputs", "output name must not be empty")
			continue
		}
		if seen[out] {
			v.AddError("outputs", "duplicate output "+out)
		}
		seen[out] = true
	}
	if err := s.resources.Validate(); err != nil {
		v.AddError("resources", err.Error())
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is New that panics on invalid definitions. Intended for
// statically-declared pipelines and tests.
func MustNew(name string, callable Callable, opts ...Option) *Step {
	s, err := New(name, callable, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the step's unique name.
func (s *Step) Name() string { return s.name }

// Inputs returns a copy of the declared input names.
func (s *Step) Inputs() []string { return append([]string(nil), s.inputs...) }

// Outputs returns a copy of the declared output names.
func (s *Step) Outputs() []string { return append([]string(nil), s.outputs...) }

// Callable returns the step's callable contract.
func (s *Step) Callable() Callable { return s.callable }

// CachePolicy returns the step's cache policy.
func (s *Step) CachePolicy() CachePolicy { return s.cachePolicy }

// RetryLimit returns the number of retries after the first failure.
func (s *Step) RetryLimit() int { return s.retryLimit }

// Group returns the execution-group tag, empty when untagged.
func (s *Step) Group() string { return s.group }

// Resources returns the declared resource requirements, nil when absent.
func (s *Step) Resources() *resources.Requirements { return s.resources }

// Guard returns the guard predicate, nil when absent.
func (s *Step) Guard() *Guard { return s.guard }

// Timeout returns the per-attempt deadline, zero when unbounded.
func (s *Step) Timeout() time.Duration { return s.timeout }

// Invoke runs the callable with bound arguments.
func (s *Step) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return s.callable.Fn(ctx, args)
}

// SplitOutputs maps a callable's raw return value onto the step's declared
// output names. A single declared output binds the value directly; multiple
// outputs require a map keyed by output name.
func (s *Step) SplitOutputs(value any) (map[string]any, error) {
	switch len(s.outputs) {
	case 0:
		return nil, nil
	case 1:
		return map[string]any{s.outputs[0]: value}, nil
	default:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeValidation,
				"step %q declares %d outputs but returned %T, want map[string]any",
				s.name, len(s.outputs), value)
		}
		out := make(map[string]any, len(s.outputs))
		for _, name := range s.outputs {
			v, ok := m[name]
			if !ok {
				return nil, errors.Newf(errors.ErrCodeValidation,
					"step %q did not return declared output %q", s.name, name)
			}
			out[name] = v
		}
		return out, nil
	}
}
