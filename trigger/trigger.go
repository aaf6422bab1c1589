// Package trigger schedules recurring pipeline runs.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/orchestrator"
)

// Interval runs a pipeline on a fixed schedule. Runs never overlap: a
// tick that arrives while a run is still in flight is dropped.
type Interval struct {
	pipeline *orchestrator.Pipeline
	every    time.Duration
	inputs   func() map[string]any
	log      *logger.Logger

	mu      sync.Mutex
	last    *orchestrator.PipelineResult
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewInterval creates a trigger firing the pipeline every interval.
// The inputs function is called before each run; nil means no inputs.
func NewInterval(p *orchestrator.Pipeline, every time.Duration, inputs func() map[string]any, log *logger.Logger) *Interval {
	if inputs == nil {
		inputs = func() map[string]any { return nil }
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Interval{
		pipeline: p,
		every:    every,
		inputs:   inputs,
		log:      log.WithComponent("trigger").WithFields(map[string]any{logger.FieldPipeline: p.Name()}),
	}
}

// Start begins firing until Stop is called or ctx is cancelled.
func (t *Interval) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.running = true

	go t.loop(ctx)
	t.log.Info("trigger started", map[string]any{"interval": t.every.String()})
}

func (t *Interval) loop(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := t.pipeline.Run(ctx, t.inputs(), false)
			t.mu.Lock()
			t.last = result
			t.mu.Unlock()
			if !result.Success() {
				t.log.Warn("scheduled run failed", map[string]any{
					logger.FieldRunID: result.RunID,
					logger.FieldError: result.Err.Error(),
				})
			}
		}
	}
}

// Stop halts the schedule and waits for the loop to exit. The run in
// flight, if any, finishes first.
func (t *Interval) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
	t.log.Info("trigger stopped")
}

// Last returns the most recent run's result, nil before the first run.
func (t *Interval) Last() *orchestrator.PipelineResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
