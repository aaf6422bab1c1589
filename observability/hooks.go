package observability

import (
	"context"

	"github.com/kbukum/flowkit/executor"
	"github.com/kbukum/flowkit/orchestrator"
)

// RunHooks adapts the engine's metric instruments to pipeline hooks, so
// every step and run is recorded without touching the orchestrator.
func RunHooks(metrics *Metrics) orchestrator.Hooks {
	ctx := context.Background()
	return orchestrator.Hooks{
		OnStepStart: []func(runID, stepName string){
			func(runID, stepName string) {
				metrics.RecordStepStart(ctx)
			},
		},
		OnStepEnd: []func(runID string, result executor.Result){
			func(runID string, result executor.Result) {
				metrics.RecordStepEnd(ctx, result.StepName, stepOutcome(result),
					result.Duration, result.Cached, result.Retries)
			},
		},
		OnRunEnd: []func(result *orchestrator.PipelineResult){
			func(result *orchestrator.PipelineResult) {
				metrics.RecordRunEnd(ctx, result.PipelineName, string(result.State), result.Duration())
			},
		},
	}
}

func stepOutcome(result executor.Result) string {
	switch {
	case result.Skipped:
		return "skipped"
	case result.Success:
		return "success"
	default:
		return "failure"
	}
}
