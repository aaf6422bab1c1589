package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/flowkit/checkpoint"
	"github.com/kbukum/flowkit/condition"
	"github.com/kbukum/flowkit/executor"
	"github.com/kbukum/flowkit/grouping"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/step"
	"github.com/kbukum/flowkit/version"
)

// run carries the mutable state of one pipeline execution.
type run struct {
	p       *Pipeline
	id      string
	log     *logger.Logger
	result  *PipelineResult
	outputs map[string]any
	record  *checkpoint.Record
	// fired marks branches that already selected a step.
	fired map[*condition.Branch]bool
	// executed marks steps that already ran this run (or a previous,
	// resumed one).
	executed map[string]bool
}

// Run executes the pipeline with the given external inputs. When resume
// is true and a checkpoint exists for this pipeline, completed steps
// are replayed from the checkpoint instead of re-executing.
func (p *Pipeline) Run(ctx context.Context, inputs map[string]any, resume bool) *PipelineResult {
	runID := uuid.NewString()
	result := newResult(p.name, runID)
	result.StartTime = time.Now().UTC()

	var r *run
	finalize := func(state State, err error) *PipelineResult {
		result.State = state
		result.Err = err
		result.EndTime = time.Now().UTC()
		if r != nil {
			for k, v := range r.outputs {
				result.Outputs[k] = v
			}
		}
		p.hooks.runEnd(result)
		p.saveRunMetadata(ctx, result)
		return result
	}

	if !p.built {
		if err := p.Build(); err != nil {
			return finalize(StateFailed, err)
		}
	}

	log := p.log.WithRun(p.name, runID)
	log.Info("run starting", map[string]any{"resume": resume, "steps": len(p.steps)})

	if p.remote != nil {
		handle, err := p.remote.Submit(ctx, p.name, runID, inputs)
		if err != nil {
			return finalize(StateFailed, err)
		}
		log.Info("run submitted to remote backend", map[string]any{"handle": handle})
		return finalize(StateSubmitted, nil)
	}

	if p.watchEvery > 0 {
		watcher := executor.NewWatcher(p.stop, p.watchEvery, p.log)
		defer watcher.Close()
		ctx = watcher.Watch(ctx, runID)
	}

	r = &run{
		p:        p,
		id:       runID,
		log:      log,
		result:   result,
		outputs:  make(map[string]any, len(inputs)),
		record:   checkpoint.NewRecord(p.name, runID),
		fired:    make(map[*condition.Branch]bool),
		executed: make(map[string]bool),
	}
	for k, v := range inputs {
		r.outputs[k] = v
	}

	if resume {
		r.splice()
	}

	result.State = StateRunning
	for _, unit := range p.units {
		if err := r.runUnit(ctx, unit); err != nil {
			return finalize(StateFailed, err)
		}
		if err := r.evaluateBranches(ctx); err != nil {
			return finalize(StateFailed, err)
		}
	}
	if err := r.evaluateBranches(ctx); err != nil {
		return finalize(StateFailed, err)
	}

	r.clearCheckpoint()
	log.Info("run completed", map[string]any{logger.FieldDuration: time.Since(result.StartTime).String()})
	return finalize(StateCompleted, nil)
}

// splice replays a previous checkpoint: completed steps are reported
// verbatim and their outputs join the live output map.
func (r *run) splice() {
	if r.p.checkpoints == nil {
		return
	}
	previous, ok, err := r.p.checkpoints.Load(r.p.name)
	if err != nil {
		r.log.Warn("checkpoint load failed, starting fresh", map[string]any{
			logger.FieldError: err.Error(),
		})
		return
	}
	if !ok {
		return
	}

	r.log.Info("resuming from checkpoint", map[string]any{
		"previous_run":        previous.RunID,
		"last_completed_step": previous.LastCompletedStep,
	})
	for _, name := range previous.CompletedSteps {
		meta := previous.StepMetadata[name]
		r.executed[name] = true
		r.record.Complete(name, meta)
		r.result.record(name, StepReport{
			Success:  true,
			Duration: meta.DurationSeconds,
			Cached:   meta.Cached,
			Retries:  meta.Retries,
		})
		for k, v := range meta.Outputs {
			r.outputs[k] = v
		}
	}
}

// runUnit executes one step or group unless the checkpoint already
// covers it. A group resumes only when every member completed.
func (r *run) runUnit(ctx context.Context, unit grouping.Unit) error {
	if r.completedUnit(unit) {
		r.log.Debug("unit already completed, skipping", map[string]any{"unit": unit.Name()})
		return nil
	}

	if unit.IsGroup() {
		return r.runGroup(ctx, unit.Group)
	}
	return r.runStep(ctx, unit.Step)
}

func (r *run) completedUnit(unit grouping.Unit) bool {
	for _, member := range unit.Steps() {
		if !r.executed[member.Name()] {
			return false
		}
	}
	return true
}

func (r *run) runStep(ctx context.Context, s *step.Step) error {
	r.p.hooks.stepStart(r.id, s.Name())
	res := r.p.exec.ExecuteStep(ctx, s, r.outputs, r.id)
	r.p.hooks.stepEnd(r.id, res)
	return r.absorb(s, res)
}

func (r *run) runGroup(ctx context.Context, g *grouping.Group) error {
	for _, member := range g.Steps {
		r.p.hooks.stepStart(r.id, member.Name())
	}
	group := r.p.exec.ExecuteGroup(ctx, g, r.outputs, r.id)

	var failure error
	for i, res := range group.Results {
		r.p.hooks.stepEnd(r.id, res)
		if err := r.absorb(g.Steps[i], res); err != nil && failure == nil {
			failure = err
		}
	}
	return failure
}

// absorb folds one step result into the run: report, outputs,
// checkpoint.
func (r *run) absorb(s *step.Step, res executor.Result) error {
	report := StepReport{
		Success:    res.Success,
		Duration:   res.Duration.Seconds(),
		Cached:     res.Cached,
		Skipped:    res.Skipped,
		SkipReason: res.SkipReason,
		Retries:    res.Retries,
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}
	r.result.record(s.Name(), report)

	if res.Err != nil {
		return res.Err
	}
	if res.Skipped {
		r.executed[s.Name()] = true
		return nil
	}

	r.executed[s.Name()] = true
	for k, v := range res.Outputs {
		r.outputs[k] = v
	}
	r.checkpointStep(s.Name(), res)
	return nil
}

// checkpointStep persists progress after a successful step. Write
// failures degrade the run to non-resumable rather than failing it.
func (r *run) checkpointStep(name string, res executor.Result) {
	if r.p.checkpoints == nil {
		return
	}
	r.record.Complete(name, checkpoint.StepMetadata{
		Outputs:         res.Outputs,
		DurationSeconds: res.Duration.Seconds(),
		Cached:          res.Cached,
		Retries:         res.Retries,
	})
	if err := r.p.checkpoints.Save(r.record); err != nil {
		r.log.Warn("checkpoint write failed", map[string]any{
			logger.FieldStep:  name,
			logger.FieldError: err.Error(),
		})
	}
}

func (r *run) clearCheckpoint() {
	if r.p.checkpoints == nil {
		return
	}
	if err := r.p.checkpoints.Reset(r.p.name); err != nil {
		r.log.Warn("checkpoint reset failed", map[string]any{
			logger.FieldError: err.Error(),
		})
	}
}

// evaluateBranches fires every ready, unfired branch, repeating until a
// full pass fires nothing. A selected step's outputs may make further
// branches ready, so selections cascade within one call.
func (r *run) evaluateBranches(ctx context.Context) error {
	for {
		progressed := false
		for _, b := range r.p.branches {
			if r.fired[b] || !b.Ready(r.outputs) {
				continue
			}
			r.fired[b] = true
			progressed = true

			selected, err := b.Evaluate(r.outputs)
			if err != nil {
				r.log.Warn("branch predicate failed, taking else", map[string]any{
					logger.FieldBranch: b.Name,
					logger.FieldError:  err.Error(),
				})
			}
			if selected == nil {
				r.log.Info("branch selected no step", map[string]any{logger.FieldBranch: b.Name})
				continue
			}
			r.log.Info("branch selected step", map[string]any{
				logger.FieldBranch: b.Name,
				logger.FieldStep:   selected.Name(),
			})

			if r.executed[selected.Name()] {
				continue
			}
			if err := r.runStep(ctx, selected); err != nil {
				return err
			}
		}
		if !progressed {
			return nil
		}
	}
}

// saveRunMetadata records the final summary in the artifact store.
func (p *Pipeline) saveRunMetadata(ctx context.Context, result *PipelineResult) {
	if p.artifacts == nil {
		return
	}
	steps := make(map[string]any, len(result.stepOrder))
	for _, name := range result.stepOrder {
		report := result.steps[name]
		steps[name] = map[string]any{
			"success":          report.Success,
			"duration_seconds": report.Duration,
			"cached":           report.Cached,
			"retries":          report.Retries,
		}
	}
	metadata := map[string]any{
		"run_id":           result.RunID,
		"pipeline_name":    result.PipelineName,
		"state":            string(result.State),
		"success":          result.Success(),
		"duration_seconds": result.Duration().Seconds(),
		"engine_version":   version.Get().String(),
		"steps":            steps,
	}
	if err := p.artifacts.SaveRun(ctx, result.RunID, metadata); err != nil {
		p.log.Warn("run metadata save failed", map[string]any{
			logger.FieldRunID: result.RunID,
			logger.FieldError: err.Error(),
		})
	}
}
