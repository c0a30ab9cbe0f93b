// Package task defines the unit-of-work contract for the analysis pipeline
// and the runner that executes tasks against state snapshots.
//
// A Task consumes an immutable state snapshot and produces a partial update.
// The Runner guarantees failures never cross the task boundary as panics or
// errors: every outcome, success or failure, folds back into shared state as
// data.
package task

import (
	"context"

	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/state"
)

// Task is one unit of analysis or production work.
//
// Process receives a private snapshot and must not mutate it; results are
// returned as a partial update. Implementations should honor ctx
// cancellation when they wait on external calls, and must be safe to retry.
type Task interface {
	// Name returns the task identifier used in scheduling, dependency
	// declarations, and error attribution.
	Name() string

	// Process performs the work against the snapshot and returns the
	// fields it produced.
	Process(ctx context.Context, snapshot state.State) (state.Update, error)
}

// Task lifecycle event types.
const (
	EventTaskStart    observability.EventType = "task.start"
	EventTaskComplete observability.EventType = "task.complete"
	EventTaskFail     observability.EventType = "task.fail"
)

// Func adapts a plain function into a Task.
type Func struct {
	TaskName string
	Fn       func(ctx context.Context, snapshot state.State) (state.Update, error)
}

func (f Func) Name() string { return f.TaskName }

func (f Func) Process(ctx context.Context, snapshot state.State) (state.Update, error) {
	return f.Fn(ctx, snapshot)
}
