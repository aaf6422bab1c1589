package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// StopFlag is a cooperative stop request shared between a run and
// whoever wants to halt it.
type StopFlag struct {
	stopped atomic.Bool
}

// Stop requests the run to halt before its next step.
func (f *StopFlag) Stop() { f.stopped.Store(true) }

// Stopped reports whether a stop was requested.
func (f *StopFlag) Stopped() bool { return f.stopped.Load() }

// Watcher polls a StopFlag and cancels a derived context with a
// StoppedByRequest cause when the flag trips. Steps observe the request
// through their context; nothing is killed mid-flight.
type Watcher struct {
	flag     *StopFlag
	interval time.Duration
	log      *logger.Logger

	mu   sync.Mutex
	done chan struct{}
}

// NewWatcher creates a watcher polling flag every interval.
func NewWatcher(flag *StopFlag, interval time.Duration, log *logger.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		flag:     flag,
		interval: interval,
		log:      log.WithComponent("watcher"),
	}
}

// Watch derives a cancellable context from parent and starts polling.
// The returned context is cancelled with a StoppedByRequest cause when
// the flag trips, or follows the parent's cancellation.
func (w *Watcher) Watch(parent context.Context, runID string) context.Context {
	ctx, cancel := context.WithCancelCause(parent)

	w.mu.Lock()
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				cancel(nil)
				return
			case <-parent.Done():
				cancel(context.Cause(parent))
				return
			case <-ticker.C:
				if w.flag.Stopped() {
					w.log.Warn("stop requested, cancelling run", map[string]any{
						logger.FieldRunID: runID,
					})
					cancel(errors.StoppedByRequest(""))
					return
				}
				w.log.Debug("run alive", map[string]any{
					logger.FieldRunID: runID,
				})
			}
		}
	}()
	return ctx
}

// Close stops the polling goroutine. Idempotent.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		select {
		case <-w.done:
		default:
			close(w.done)
		}
		w.done = nil
	}
}
