package condition

import (
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/step"
)

// Predicate decides a branch from the outputs accumulated so far. The
// map holds one Value per output name the branch declared in Requires.
type Predicate func(outputs map[string]Value) (bool, error)

// Branch is a predicate-guarded choice of which step to run next.
type Branch struct {
	// Name identifies the branch in logs and results.
	Name string
	// Requires lists the output names the predicate reads. The branch is
	// evaluated as soon as all of them exist in the live output map.
	Requires []string
	// Predicate selects Then on true, Else on false. An evaluation error
	// falls back to Else rather than aborting the run.
	Predicate Predicate
	// Then runs when the predicate holds. Optional.
	Then *step.Step
	// Else runs when the predicate does not hold or errors. Optional.
	Else *step.Step
}

// If starts building a branch over the named outputs.
func If(name string, predicate Predicate, requires ...string) *Branch {
	return &Branch{Name: name, Predicate: predicate, Requires: requires}
}

// WithThen sets the step selected when the predicate holds.
func (b *Branch) WithThen(s *step.Step) *Branch {
	b.Then = s
	return b
}

// WithElse sets the step selected when the predicate does not hold.
func (b *Branch) WithElse(s *step.Step) *Branch {
	b.Else = s
	return b
}

// Ready reports whether every required output exists.
func (b *Branch) Ready(outputs map[string]any) bool {
	for _, name := range b.Requires {
		if _, ok := outputs[name]; !ok {
			return false
		}
	}
	return true
}

// Evaluate runs the predicate against the live outputs and returns the
// selected step (nil when the selected side is unset) plus the
// evaluation error, already classified as non-fatal. On error the else
// step is selected.
func (b *Branch) Evaluate(outputs map[string]any) (*step.Step, error) {
	wrapped := make(map[string]Value, len(b.Requires))
	for _, name := range b.Requires {
		wrapped[name] = Wrap(outputs[name])
	}

	ok, err := b.Predicate(wrapped)
	if err != nil {
		return b.Else, errors.BranchEvaluation(b.Name, err)
	}
	if ok {
		return b.Then, nil
	}
	return b.Else, nil
}

// Threshold builds a predicate comparing one numeric output against a
// bound: true when output > bound.
func Threshold(output string, bound float64) Predicate {
	return func(outputs map[string]Value) (bool, error) {
		v, ok := outputs[output].AsFloat()
		if !ok {
			raw, _ := outputs[output].AsScalar()
			return false, errors.Newf(errors.ErrCodeBranchEvaluation,
				"output %q is not numeric (%T)", output, raw)
		}
		return v > bound, nil
	}
}
