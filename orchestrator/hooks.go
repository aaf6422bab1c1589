package orchestrator

import "github.com/kbukum/flowkit/executor"

// Hooks observe a run's progress. Every field is optional. Hooks belong
// to the Pipeline instance they are registered on; two pipelines never
// share them.
type Hooks struct {
	// OnStepStart fires before each step or group member executes.
	OnStepStart []func(runID, stepName string)
	// OnStepEnd fires after each step finishes, with its result.
	OnStepEnd []func(runID string, result executor.Result)
	// OnRunEnd fires once with the final run summary.
	OnRunEnd []func(result *PipelineResult)
}

func (h *Hooks) stepStart(runID, stepName string) {
	for _, fn := range h.OnStepStart {
		fn(runID, stepName)
	}
}

func (h *Hooks) stepEnd(runID string, result executor.Result) {
	for _, fn := range h.OnStepEnd {
		fn(runID, result)
	}
}

func (h *Hooks) runEnd(result *PipelineResult) {
	for _, fn := range h.OnRunEnd {
		fn(result)
	}
}
