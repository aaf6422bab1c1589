package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/kbukum/flowkit/grouping"
	"github.com/kbukum/flowkit/step"
)

func TestExecuteGroup_ThreadsOutputs(t *testing.T) {
	var order []string
	prepare := step.MustNew("prepare", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			order = append(order, "prepare")
			return "mnist", nil
		},
	}, step.WithOutputs("dataset"), step.WithGroup("training"))
	train := step.MustNew("train", step.Callable{
		Params: []string{"dataset"},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			order = append(order, "train")
			return args["dataset"].(string) + "-model", nil
		},
	}, step.WithInputs("dataset"), step.WithOutputs("model"), step.WithGroup("training"))

	g := &grouping.Group{Name: "training", Tag: "training", Steps: []*step.Step{prepare, train}}
	result := newExecutor(t).ExecuteGroup(context.Background(), g, map[string]any{}, "run-1")
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Outputs["model"] != "mnist-model" {
		t.Errorf("Outputs = %v", result.Outputs)
	}
	if len(order) != 2 || order[0] != "prepare" || order[1] != "train" {
		t.Errorf("order = %v", order)
	}
}

func TestExecuteGroup_FailureSkipsRemaining(t *testing.T) {
	ok := step.MustNew("first", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) { return 1, nil },
	}, step.WithOutputs("a"), step.WithGroup("g"))
	broken := step.MustNew("second", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("boom")
		},
	}, step.WithGroup("g"))
	var ran bool
	never := step.MustNew("third", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			ran = true
			return nil, nil
		},
	}, step.WithGroup("g"))

	g := &grouping.Group{Name: "g", Tag: "g", Steps: []*step.Step{ok, broken, never}}
	result := newExecutor(t).ExecuteGroup(context.Background(), g, nil, "run-1")
	if result.Success {
		t.Fatal("expected group failure")
	}
	if ran {
		t.Error("members after a failure must not run")
	}
	if len(result.Results) != 3 {
		t.Fatalf("Results = %v", result.Results)
	}
	third := result.Results[2]
	if !third.Skipped || third.SkipReason != "skipped due to earlier failure in group" {
		t.Errorf("third = %+v", third)
	}
	// Outputs produced before the failure are still surfaced.
	if result.Outputs["a"] != 1 {
		t.Errorf("Outputs = %v", result.Outputs)
	}
}

func TestExecuteGroup_PositionalFallback(t *testing.T) {
	producer := step.MustNew("producer", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) { return 42, nil },
	}, step.WithOutputs("answer"), step.WithGroup("g"))
	// The consumer's parameter name does not match any output; it binds
	// positionally through the declared input list.
	consumer := step.MustNew("consumer", step.Callable{
		Params: []string{"value"},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return args["value"].(int) * 2, nil
		},
	}, step.WithInputs("answer"), step.WithOutputs("doubled"), step.WithGroup("g"))

	g := &grouping.Group{Name: "g", Tag: "g", Steps: []*step.Step{producer, consumer}}
	result := newExecutor(t).ExecuteGroup(context.Background(), g, nil, "run-1")
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Outputs["doubled"] != 84 {
		t.Errorf("Outputs = %v", result.Outputs)
	}
}

func TestExecuteGroup_GuardSkipDoesNotFailGroup(t *testing.T) {
	skipped := step.MustNew("optional", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) { return 1, nil },
	}, step.WithGroup("g"), step.WithGuard(step.Guard{
		Fn: func(map[string]any) (bool, error) { return false, nil },
	}))
	after := step.MustNew("after", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) { return 2, nil },
	}, step.WithOutputs("b"), step.WithGroup("g"))

	g := &grouping.Group{Name: "g", Tag: "g", Steps: []*step.Step{skipped, after}}
	result := newExecutor(t).ExecuteGroup(context.Background(), g, nil, "run-1")
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Outputs["b"] != 2 {
		t.Errorf("Outputs = %v", result.Outputs)
	}
}
