package task

import (
	"context"
	"fmt"
	"time"

	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/state"
)

// Outcome is the result of one task execution. Exactly one of Update or Err
// is meaningful: a success carries the task's partial update, a failure
// carries the captured error.
type Outcome struct {
	Task     string
	Update   state.Update
	Err      error
	Duration time.Duration
}

// Failed reports whether the execution ended in a captured error.
func (o Outcome) Failed() bool { return o.Err != nil }

// StateUpdate converts the outcome into the update to fold into shared
// state. A success returns the task's own update plus a log line. A
// failure returns an update that records the error in task_errors and
// errors; the caller only marks successful tasks completed, so a later
// pass may reschedule a failed one.
func (o Outcome) StateUpdate() state.Update {
	if o.Err != nil {
		msg := o.Err.Error()
		return state.Update{
			state.FieldTaskErrors: map[string]string{o.Task: msg},
			state.FieldErrors:     []string{fmt.Sprintf("%s: %s", o.Task, msg)},
			state.FieldLogLines:   fmt.Sprintf("task %s failed after %s: %s", o.Task, o.Duration, msg),
		}
	}

	update := state.Update{
		state.FieldLogLines: fmt.Sprintf("task %s completed in %s", o.Task, o.Duration),
	}
	for k, v := range o.Update {
		update[k] = v
	}
	return update
}

// Runner executes tasks against state snapshots, converting every failure
// mode into an Outcome. No error or panic escapes Run. The runner performs
// no retries; retry policy belongs to the task itself.
type Runner struct {
	observer observability.Observer
}

// NewRunner creates a Runner reporting to the given observer. A nil
// observer disables events.
func NewRunner(observer observability.Observer) *Runner {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Runner{observer: observer}
}

// Run executes one task against a snapshot. Panics inside the task are
// recovered and reported as failures so a buggy collaborator cannot take
// down sibling branches.
func (r *Runner) Run(ctx context.Context, t Task, snapshot state.State) Outcome {
	started := time.Now()

	r.observer.OnEvent(ctx, observability.Event{
		Type:      EventTaskStart,
		Level:     observability.LevelInfo,
		Timestamp: started,
		Source:    "task.Runner",
		Data: map[string]any{
			"task":        t.Name(),
			"workflow_id": snapshot.WorkflowID,
			"stage":       string(snapshot.Stage),
		},
	})

	update, err := r.runRecovered(ctx, t, snapshot)
	outcome := Outcome{
		Task:     t.Name(),
		Update:   update,
		Err:      err,
		Duration: time.Since(started),
	}

	if outcome.Failed() {
		r.observer.OnEvent(ctx, observability.Event{
			Type:      EventTaskFail,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    "task.Runner",
			Data: map[string]any{
				"task":        t.Name(),
				"workflow_id": snapshot.WorkflowID,
				"duration_ms": outcome.Duration.Milliseconds(),
				"error":       outcome.Err.Error(),
			},
		})
		return outcome
	}

	r.observer.OnEvent(ctx, observability.Event{
		Type:      EventTaskComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "task.Runner",
		Data: map[string]any{
			"task":        t.Name(),
			"workflow_id": snapshot.WorkflowID,
			"duration_ms": outcome.Duration.Milliseconds(),
			"fields":      len(outcome.Update),
		},
	})
	return outcome
}

func (r *Runner) runRecovered(ctx context.Context, t Task, snapshot state.State) (update state.Update, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			update = nil
			err = fmt.Errorf("task %s panicked: %v", t.Name(), rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("task %s not started: %w", t.Name(), err)
	}

	return t.Process(ctx, snapshot)
}
