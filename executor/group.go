package executor

import (
	"context"

	"github.com/kbukum/flowkit/grouping"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/step"
)

// GroupResult holds the per-member results of one group execution, in
// member order.
type GroupResult struct {
	GroupName string
	Results   []Result
	// Outputs accumulates every member's outputs.
	Outputs map[string]any
	Success bool
}

// ExecuteGroup runs a group's members strictly in order, threading each
// member's outputs into the next member's parameter space. A member
// failure marks every remaining member skipped and fails the group; a
// skipped member (guard) does not.
func (e *Executor) ExecuteGroup(ctx context.Context, g *grouping.Group, available map[string]any, runID string) GroupResult {
	log := e.log.WithFields(map[string]any{logger.FieldGroup: g.Name})
	log.Info("group starting", map[string]any{"members": len(g.Steps)})

	group := GroupResult{
		GroupName: g.Name,
		Results:   make([]Result, 0, len(g.Steps)),
		Outputs:   make(map[string]any),
		Success:   true,
	}

	// Members see the caller's values plus everything produced so far.
	scope := make(map[string]any, len(available))
	for k, v := range available {
		scope[k] = v
	}

	for _, member := range g.Steps {
		if !group.Success {
			group.Results = append(group.Results, Result{
				StepName:   member.Name(),
				Skipped:    true,
				SkipReason: "skipped due to earlier failure in group",
			})
			continue
		}

		result := e.ExecuteStep(ctx, member, e.memberScope(member, scope), runID)
		group.Results = append(group.Results, result)

		if result.Err != nil {
			log.Error("group member failed", map[string]any{
				logger.FieldStep:  member.Name(),
				logger.FieldError: result.Err.Error(),
			})
			group.Success = false
			continue
		}
		for k, v := range result.Outputs {
			scope[k] = v
			group.Outputs[k] = v
		}
	}

	log.Info("group finished", map[string]any{"success": group.Success})
	return group
}

// memberScope resolves a member's parameter space. Names resolve
// directly from the shared scope; a parameter with no matching name
// falls back to the value of the step's declared input at the same
// position.
func (e *Executor) memberScope(member *step.Step, scope map[string]any) map[string]any {
	params := member.Callable().Params
	inputs := member.Inputs()

	resolved := make(map[string]any, len(scope))
	for k, v := range scope {
		resolved[k] = v
	}
	for i, param := range params {
		if _, ok := scope[param]; ok {
			continue
		}
		if i < len(inputs) {
			if v, ok := scope[inputs[i]]; ok {
				resolved[param] = v
			}
		}
	}
	return resolved
}
