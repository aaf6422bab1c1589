package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/flowkit/condition"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/resources"
	"github.com/kbukum/flowkit/step"
	"github.com/kbukum/flowkit/validation"
)

// Definition is a YAML-defined pipeline. Callables and guards are
// referenced by registry key; ThresholdBranch is the only predicate
// form YAML can express, richer predicates stay in code.
type Definition struct {
	Name           string      `yaml:"name" validate:"required"`
	ExternalInputs []string    `yaml:"external_inputs,omitempty"`
	Steps          []StepDef   `yaml:"steps" validate:"required,min=1,dive"`
	BranchSteps    []StepDef   `yaml:"branch_steps,omitempty" validate:"dive"`
	Branches       []BranchDef `yaml:"branches,omitempty" validate:"dive"`
}

// StepDef defines one step.
type StepDef struct {
	Name      string                  `yaml:"name" validate:"required"`
	Callable  string                  `yaml:"callable" validate:"required"`
	Inputs    []string                `yaml:"inputs,omitempty"`
	Outputs   []string                `yaml:"outputs,omitempty"`
	Cache     string                  `yaml:"cache,omitempty" validate:"omitempty,oneof=off inputs code"`
	Retries   int                     `yaml:"retries,omitempty" validate:"min=0"`
	Group     string                  `yaml:"group,omitempty"`
	Timeout   time.Duration           `yaml:"timeout,omitempty"`
	Guard     string                  `yaml:"guard,omitempty"`
	Resources *resources.Requirements `yaml:"resources,omitempty"`
}

// BranchDef defines one conditional branch.
type BranchDef struct {
	Name      string        `yaml:"name" validate:"required"`
	Requires  []string      `yaml:"requires" validate:"required,min=1"`
	Threshold *ThresholdDef `yaml:"threshold" validate:"required"`
	Then      string        `yaml:"then,omitempty"`
	Else      string        `yaml:"else,omitempty"`
}

// ThresholdDef compares one output against a bound: the branch takes
// Then when output > bound.
type ThresholdDef struct {
	Output string  `yaml:"output" validate:"required"`
	Bound  float64 `yaml:"bound"`
}

// Loader resolves pipeline definitions into runnable Pipelines using a
// step registry.
type Loader struct {
	registry *step.Registry
	dirs     []string
	opts     []PipelineOption
}

// NewLoader creates a loader resolving callables and guards from
// registry and searching the given directories for YAML files. The
// options apply to every loaded pipeline.
func NewLoader(registry *step.Registry, dirs []string, opts ...PipelineOption) *Loader {
	return &Loader{registry: registry, dirs: dirs, opts: opts}
}

// Load finds {name}.yaml or {name}.yml in the configured directories
// and assembles a built pipeline from it.
func (l *Loader) Load(name string) (*Pipeline, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return l.LoadFile(path)
			}
		}
	}
	return nil, errors.NotFound("pipeline definition", name)
}

// LoadFile assembles a built pipeline from one YAML file.
func (l *Loader) LoadFile(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Validation(fmt.Sprintf("parsing %s: %v", path, err))
	}
	return l.Assemble(&def)
}

// Assemble turns a definition into a built pipeline.
func (l *Loader) Assemble(def *Definition) (*Pipeline, error) {
	if err := validation.Validate(def); err != nil {
		return nil, err
	}

	opts := append([]PipelineOption{WithExternalInputs(def.ExternalInputs...)}, l.opts...)
	p := NewPipeline(def.Name, opts...)

	branchSteps := make(map[string]*step.Step, len(def.BranchSteps))
	for i := range def.BranchSteps {
		s, err := l.buildStep(&def.BranchSteps[i])
		if err != nil {
			return nil, err
		}
		branchSteps[s.Name()] = s
	}

	for i := range def.Steps {
		s, err := l.buildStep(&def.Steps[i])
		if err != nil {
			return nil, err
		}
		p.AddStep(s)
	}

	for i := range def.Branches {
		b, err := l.buildBranch(&def.Branches[i], branchSteps)
		if err != nil {
			return nil, err
		}
		p.AddBranch(b)
	}

	if err := p.Build(); err != nil {
		return nil, err
	}
	return p, nil
}

func (l *Loader) buildStep(def *StepDef) (*step.Step, error) {
	callable, ok := l.registry.Callable(def.Callable)
	if !ok {
		return nil, errors.NotFound("callable", def.Callable)
	}

	opts := []step.Option{
		step.WithInputs(def.Inputs...),
		step.WithOutputs(def.Outputs...),
		step.WithRetries(def.Retries),
	}
	if def.Cache != "" {
		opts = append(opts, step.WithCache(step.CachePolicy(def.Cache)))
	}
	if def.Group != "" {
		opts = append(opts, step.WithGroup(def.Group))
	}
	if def.Timeout > 0 {
		opts = append(opts, step.WithTimeout(def.Timeout))
	}
	if def.Resources != nil {
		opts = append(opts, step.WithResources(def.Resources))
	}
	if def.Guard != "" {
		guard, ok := l.registry.Guard(def.Guard)
		if !ok {
			return nil, errors.NotFound("guard", def.Guard)
		}
		opts = append(opts, step.WithGuard(guard))
	}
	return step.New(def.Name, callable, opts...)
}

func (l *Loader) buildBranch(def *BranchDef, branchSteps map[string]*step.Step) (*condition.Branch, error) {
	b := condition.If(def.Name,
		condition.Threshold(def.Threshold.Output, def.Threshold.Bound),
		def.Requires...)

	resolve := func(name string) (*step.Step, error) {
		if name == "" {
			return nil, nil
		}
		if s, ok := branchSteps[name]; ok {
			return s, nil
		}
		return nil, errors.NotFound("branch step", name)
	}

	then, err := resolve(def.Then)
	if err != nil {
		return nil, err
	}
	elseStep, err := resolve(def.Else)
	if err != nil {
		return nil, err
	}
	if then != nil {
		b.WithThen(then)
	}
	if elseStep != nil {
		b.WithElse(elseStep)
	}
	return b, nil
}
