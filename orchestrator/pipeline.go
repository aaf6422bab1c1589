package orchestrator

import (
	"time"

	"github.com/kbukum/flowkit/artifact"
	"github.com/kbukum/flowkit/checkpoint"
	"github.com/kbukum/flowkit/condition"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/executor"
	"github.com/kbukum/flowkit/graph"
	"github.com/kbukum/flowkit/grouping"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/step"
)

// Pipeline is a named collection of steps, groups and branches that run
// as one unit. Build wires the dependency graph; Run executes it.
type Pipeline struct {
	name      string
	steps     []*step.Step
	branches  []*condition.Branch
	externals []string

	graph *graph.Graph
	units []grouping.Unit
	built bool

	exec        *executor.Executor
	checkpoints checkpoint.Store
	artifacts   artifact.Store
	remote      RemoteRunner
	log         *logger.Logger
	hooks       Hooks
	stop        *executor.StopFlag
	watchEvery  time.Duration
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithExecutor replaces the default executor.
func WithExecutor(e *executor.Executor) PipelineOption {
	return func(p *Pipeline) { p.exec = e }
}

// WithCheckpoints enables checkpoint/resume through a store.
func WithCheckpoints(store checkpoint.Store) PipelineOption {
	return func(p *Pipeline) { p.checkpoints = store }
}

// WithArtifacts records run metadata in an artifact store.
func WithArtifacts(store artifact.Store) PipelineOption {
	return func(p *Pipeline) { p.artifacts = store }
}

// WithRemote hands runs to a remote backend instead of executing
// locally.
func WithRemote(r RemoteRunner) PipelineOption {
	return func(p *Pipeline) { p.remote = r }
}

// WithLogger sets the pipeline's logger.
func WithLogger(log *logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// WithExternalInputs declares the input names Run is expected to
// supply; steps may consume them without a producing step.
func WithExternalInputs(names ...string) PipelineOption {
	return func(p *Pipeline) { p.externals = append(p.externals, names...) }
}

// WithHooks registers run observers on this pipeline instance.
func WithHooks(hooks Hooks) PipelineOption {
	return func(p *Pipeline) { p.hooks = hooks }
}

// WithStopWatch polls the pipeline's stop flag at the given interval
// during runs.
func WithStopWatch(interval time.Duration) PipelineOption {
	return func(p *Pipeline) { p.watchEvery = interval }
}

// NewPipeline creates an empty pipeline.
func NewPipeline(name string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		name: name,
		log:  logger.NewFromEnv("flowkit"),
		stop: &executor.StopFlag{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.exec == nil {
		p.exec = executor.New(p.log)
	}
	p.log = p.log.WithComponent("orchestrator")
	return p
}

// AddStep registers a step in the dependency graph. Steps added here
// participate in the topological walk; steps referenced only by a
// branch do not.
func (p *Pipeline) AddStep(s *step.Step) *Pipeline {
	p.steps = append(p.steps, s)
	p.built = false
	return p
}

// AddBranch registers a conditional branch. Its Then/Else steps run
// only when selected.
func (p *Pipeline) AddBranch(b *condition.Branch) *Pipeline {
	p.branches = append(p.branches, b)
	return p
}

// Stop requests a cooperative halt of the current run.
func (p *Pipeline) Stop() { p.stop.Stop() }

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Build validates the step graph and partitions it into execution
// units. It collects every fault instead of stopping at the first.
func (p *Pipeline) Build() error {
	g := graph.New()
	for _, s := range p.steps {
		if err := g.AddNode(s); err != nil {
			return err
		}
	}
	g.BuildEdges()

	if faults := g.Validate(p.externals); len(faults) > 0 {
		v := errors.Validation("pipeline graph is invalid")
		details := make([]string, 0, len(faults))
		for _, f := range faults {
			details = append(details, f.Error())
		}
		return v.WithDetail("faults", details)
	}

	units, err := grouping.ExecutionUnits(g, p.steps)
	if err != nil {
		return err
	}

	p.graph = g
	p.units = units
	p.built = true
	return nil
}

// Units returns the execution plan, building it if needed.
func (p *Pipeline) Units() ([]grouping.Unit, error) {
	if !p.built {
		if err := p.Build(); err != nil {
			return nil, err
		}
	}
	return p.units, nil
}
