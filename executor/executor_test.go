package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/step"
)

// fastRetries keeps retry backoff out of test runtime.
func fastRetries(retryLimit int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    retryLimit + 1,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  1.0,
	}
}

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	return New(logger.Nop(), append([]Option{WithRetryPolicy(fastRetries)}, opts...)...)
}

func TestExecuteStep_Success(t *testing.T) {
	s := step.MustNew("train", step.Callable{
		Params: []string{"dataset"},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"model": args["dataset"].(string) + "-model", "score": 0.97}, nil
		},
	}, step.WithInputs("dataset"), step.WithOutputs("model", "score"))

	result := newExecutor(t).ExecuteStep(context.Background(), s, map[string]any{"dataset": "mnist"}, "run-1")
	if !result.Success || result.Err != nil {
		t.Fatalf("result = %+v", result)
	}
	if result.Outputs["model"] != "mnist-model" || result.Outputs["score"] != 0.97 {
		t.Errorf("Outputs = %v", result.Outputs)
	}
	if result.Cached || result.Skipped || result.Retries != 0 {
		t.Errorf("unexpected flags in %+v", result)
	}
}

func TestExecuteStep_MissingParameter(t *testing.T) {
	var calls int32
	s := step.MustNew("train", step.Callable{
		Params: []string{"dataset"},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		},
	}, step.WithRetries(3))

	result := newExecutor(t).ExecuteStep(context.Background(), s, map[string]any{}, "run-1")
	if result.Success {
		t.Fatal("expected failure")
	}
	if !errors.HasCode(result.Err, errors.ErrCodeParameterBinding) {
		t.Errorf("err = %v", result.Err)
	}
	if calls != 0 {
		t.Error("callable must not run without its parameters")
	}
	if result.Retries != 0 {
		t.Error("binding faults must not be retried")
	}
}

func TestExecuteStep_GuardSkips(t *testing.T) {
	var calls int32
	s := step.MustNew("deploy", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		},
	}, step.WithGuard(step.Guard{
		Params: []string{"score"},
		Fn: func(args map[string]any) (bool, error) {
			return args["score"].(float64) > 0.9, nil
		},
	}))

	result := newExecutor(t).ExecuteStep(context.Background(), s, map[string]any{"score": 0.5}, "run-1")
	if !result.Skipped || result.Err != nil {
		t.Fatalf("result = %+v", result)
	}
	if calls != 0 {
		t.Error("callable must not run when the guard declines")
	}

	result = newExecutor(t).ExecuteStep(context.Background(), s, map[string]any{"score": 0.95}, "run-1")
	if result.Skipped || !result.Success {
		t.Fatalf("result = %+v", result)
	}
}

func TestExecuteStep_GuardErrorSkipsWithoutFailing(t *testing.T) {
	s := step.MustNew("deploy", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	}, step.WithGuard(step.Guard{
		Fn: func(args map[string]any) (bool, error) { return false, fmt.Errorf("guard bug") },
	}))

	result := newExecutor(t).ExecuteStep(context.Background(), s, nil, "run-1")
	if !result.Skipped {
		t.Fatal("guard errors must skip, not fail")
	}
	if result.Err != nil {
		t.Errorf("Err = %v", result.Err)
	}
	if result.SkipReason == "" {
		t.Error("skip reason must explain the guard failure")
	}
}

func TestExecuteStep_CacheByInputs(t *testing.T) {
	var calls int32
	s := step.MustNew("train", step.Callable{
		Params: []string{"epochs"},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return "model", nil
		},
	}, step.WithOutputs("model"), step.WithCache(step.CacheByInputs))

	e := newExecutor(t)
	first := e.ExecuteStep(context.Background(), s, map[string]any{"epochs": 10}, "run-1")
	second := e.ExecuteStep(context.Background(), s, map[string]any{"epochs": 10}, "run-2")
	if first.Cached || !second.Cached {
		t.Errorf("cached flags: first=%v second=%v", first.Cached, second.Cached)
	}
	if second.Outputs["model"] != "model" {
		t.Errorf("cached outputs = %v", second.Outputs)
	}
	if calls != 1 {
		t.Errorf("callable ran %d times, want 1", calls)
	}

	// Different inputs miss.
	third := e.ExecuteStep(context.Background(), s, map[string]any{"epochs": 20}, "run-3")
	if third.Cached {
		t.Error("changed inputs must not hit the cache")
	}
	if calls != 2 {
		t.Errorf("callable ran %d times, want 2", calls)
	}
}

func TestExecuteStep_CacheByCode(t *testing.T) {
	var calls int32
	fn := func(ctx context.Context, args map[string]any) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "out", nil
	}
	v1 := step.MustNew("gen", step.Callable{Fingerprint: "v1", Fn: fn},
		step.WithOutputs("out"), step.WithCache(step.CacheByCode))
	v2 := step.MustNew("gen", step.Callable{Fingerprint: "v2", Fn: fn},
		step.WithOutputs("out"), step.WithCache(step.CacheByCode))

	e := newExecutor(t)
	e.ExecuteStep(context.Background(), v1, nil, "run-1")
	hit := e.ExecuteStep(context.Background(), v1, nil, "run-2")
	if !hit.Cached {
		t.Error("same fingerprint must hit")
	}
	miss := e.ExecuteStep(context.Background(), v2, nil, "run-3")
	if miss.Cached {
		t.Error("changed fingerprint must miss")
	}
	if calls != 2 {
		t.Errorf("callable ran %d times, want 2", calls)
	}
}

func TestExecuteStep_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	s := step.MustNew("flaky", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				return nil, fmt.Errorf("transient")
			}
			return "ok", nil
		},
	}, step.WithOutputs("out"), step.WithRetries(2))

	result := newExecutor(t).ExecuteStep(context.Background(), s, nil, "run-1")
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Retries != 2 {
		t.Errorf("Retries = %d, want 2", result.Retries)
	}
}

func TestExecuteStep_RetriesExhausted(t *testing.T) {
	var calls int32
	s := step.MustNew("broken", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, fmt.Errorf("permanent")
		},
	}, step.WithRetries(1))

	result := newExecutor(t).ExecuteStep(context.Background(), s, nil, "run-1")
	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 2 {
		t.Errorf("callable ran %d times, want retryLimit+1 = 2", calls)
	}
	if !errors.HasCode(result.Err, errors.ErrCodeStepExecution) {
		t.Errorf("err = %v", result.Err)
	}
	if result.Retries != 1 {
		t.Errorf("Retries = %d, want 1", result.Retries)
	}
}

func TestExecuteStep_StopRequestNotRetried(t *testing.T) {
	var calls int32
	s := step.MustNew("slow", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.StoppedByRequest("slow")
		},
	}, step.WithRetries(5))

	result := newExecutor(t).ExecuteStep(context.Background(), s, nil, "run-1")
	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("callable ran %d times, want 1", calls)
	}
	if !errors.HasCode(result.Err, errors.ErrCodeStoppedByRequest) {
		t.Errorf("err = %v", result.Err)
	}
}

func TestExecuteStep_Timeout(t *testing.T) {
	s := step.MustNew("slow", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return "done", nil
			}
		},
	}, step.WithTimeout(10*time.Millisecond))

	result := newExecutor(t).ExecuteStep(context.Background(), s, nil, "run-1")
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if !errors.HasCode(result.Err, errors.ErrCodeStepTimeout) {
		t.Errorf("err = %v", result.Err)
	}
}

func TestWatcher_StopCancelsWithCause(t *testing.T) {
	flag := &StopFlag{}
	w := NewWatcher(flag, time.Millisecond, logger.Nop())
	defer w.Close()

	ctx := w.Watch(context.Background(), "run-1")
	flag.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher never cancelled")
	}
	if !errors.HasCode(context.Cause(ctx), errors.ErrCodeStoppedByRequest) {
		t.Errorf("cause = %v", context.Cause(ctx))
	}
}

func TestExecuteStep_ObservesStopBeforeRunning(t *testing.T) {
	flag := &StopFlag{}
	w := NewWatcher(flag, time.Millisecond, logger.Nop())
	defer w.Close()
	ctx := w.Watch(context.Background(), "run-1")

	flag.Stop()
	<-ctx.Done()

	var calls int32
	s := step.MustNew("late", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		},
	})

	result := newExecutor(t).ExecuteStep(ctx, s, nil, "run-1")
	if result.Success {
		t.Fatal("expected failure after stop")
	}
	if !errors.HasCode(result.Err, errors.ErrCodeStoppedByRequest) {
		t.Errorf("err = %v", result.Err)
	}
	if calls != 0 {
		t.Error("callable must not run after a stop request")
	}
}
