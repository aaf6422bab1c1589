package trigger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/orchestrator"
	"github.com/kbukum/flowkit/step"
)

func countingPipeline(t *testing.T, runs *int32) *orchestrator.Pipeline {
	t.Helper()
	s := step.MustNew("tick", step.Callable{
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(runs, 1)
			return "ok", nil
		},
	}, step.WithOutputs("status"))

	p := orchestrator.NewPipeline("scheduled", orchestrator.WithLogger(logger.Nop()))
	p.AddStep(s)
	return p
}

func TestInterval_FiresAndStops(t *testing.T) {
	var runs int32
	trig := NewInterval(countingPipeline(t, &runs), 5*time.Millisecond, nil, logger.Nop())

	trig.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&runs) < 2 {
		select {
		case <-deadline:
			t.Fatal("trigger never fired twice")
		case <-time.After(time.Millisecond):
		}
	}
	trig.Stop()

	last := trig.Last()
	if last == nil || !last.Success() {
		t.Fatalf("Last = %+v", last)
	}

	settled := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&runs) != settled {
		t.Error("trigger kept firing after Stop")
	}
}

func TestInterval_StopIdempotent(t *testing.T) {
	var runs int32
	trig := NewInterval(countingPipeline(t, &runs), time.Hour, nil, logger.Nop())
	trig.Start(context.Background())
	trig.Stop()
	trig.Stop()

	if trig.Last() != nil {
		t.Error("no run should have happened")
	}
}

func TestInterval_InputsPerRun(t *testing.T) {
	var calls int32
	inputs := func() map[string]any {
		atomic.AddInt32(&calls, 1)
		return map[string]any{"n": int(atomic.LoadInt32(&calls))}
	}

	var runs int32
	trig := NewInterval(countingPipeline(t, &runs), 5*time.Millisecond, inputs, logger.Nop())
	trig.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&runs) < 1 {
		select {
		case <-deadline:
			t.Fatal("trigger never fired")
		case <-time.After(time.Millisecond):
		}
	}
	trig.Stop()

	if atomic.LoadInt32(&calls) < 1 {
		t.Error("inputs function never called")
	}
}
