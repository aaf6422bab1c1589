package orchestrator

import (
	"encoding/json"
	"time"
)

// State is a run's lifecycle phase.
type State string

const (
	// StatePending means the run has not started yet.
	StatePending State = "pending"
	// StateRunning means steps are executing.
	StateRunning State = "running"
	// StateCompleted means every selected step finished.
	StateCompleted State = "completed"
	// StateFailed means a step failed and the run stopped.
	StateFailed State = "failed"
	// StateSubmitted means the run was handed to a remote backend.
	StateSubmitted State = "submitted"
)

// StepReport summarizes one step's outcome inside a run.
type StepReport struct {
	Success    bool    `json:"success"`
	Duration   float64 `json:"duration_seconds"`
	Cached     bool    `json:"cached"`
	Skipped    bool    `json:"skipped,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`
	Retries    int     `json:"retries"`
	Error      string  `json:"error,omitempty"`
}

// PipelineResult is the full outcome of one run.
type PipelineResult struct {
	RunID        string
	PipelineName string
	State        State
	StartTime    time.Time
	EndTime      time.Time
	Outputs      map[string]any
	Err          error

	steps     map[string]StepReport
	stepOrder []string
}

func newResult(pipeline, runID string) *PipelineResult {
	return &PipelineResult{
		RunID:        runID,
		PipelineName: pipeline,
		State:        StatePending,
		Outputs:      make(map[string]any),
		steps:        make(map[string]StepReport),
	}
}

// Success reports whether the run completed (or was submitted) without
// a failure.
func (r *PipelineResult) Success() bool {
	return r.State == StateCompleted || r.State == StateSubmitted
}

// Duration is the wall-clock run time.
func (r *PipelineResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Step returns one step's report.
func (r *PipelineResult) Step(name string) (StepReport, bool) {
	report, ok := r.steps[name]
	return report, ok
}

// StepNames lists reported steps in execution order.
func (r *PipelineResult) StepNames() []string {
	return append([]string(nil), r.stepOrder...)
}

func (r *PipelineResult) record(name string, report StepReport) {
	if _, seen := r.steps[name]; !seen {
		r.stepOrder = append(r.stepOrder, name)
	}
	r.steps[name] = report
}

// MarshalJSON renders the run summary in its wire form.
func (r *PipelineResult) MarshalJSON() ([]byte, error) {
	steps := make(map[string]StepReport, len(r.steps))
	for name, report := range r.steps {
		steps[name] = report
	}
	var errText string
	if r.Err != nil {
		errText = r.Err.Error()
	}
	return json.Marshal(map[string]any{
		"run_id":           r.RunID,
		"pipeline_name":    r.PipelineName,
		"success":          r.Success(),
		"state":            r.State,
		"start_time":       r.StartTime,
		"end_time":         r.EndTime,
		"duration_seconds": r.Duration().Seconds(),
		"steps":            steps,
		"error":            errText,
	})
}
