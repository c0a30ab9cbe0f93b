package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/state"
	"github.com/evmarket/pipeline/task"
)

// RunChain executes the chain's groups in order against the branch and
// returns the branch's final state.
//
// The failure policy is record-and-continue: a failed or dependency-blocked
// task writes its error into the branch and the chain proceeds to the next
// group, so one broken collaborator never silences the rest of its chain.
// Tasks already in the branch's completed set are skipped.
func (e *Executor) RunChain(ctx context.Context, chain Chain, branch state.State) state.State {
	started := time.Now()
	e.Observer.OnEvent(ctx, observability.Event{
		Type:      EventChainStart,
		Level:     observability.LevelInfo,
		Timestamp: started,
		Source:    "workflows.Executor",
		Data: map[string]any{
			"chain":       chain.Name,
			"workflow_id": branch.WorkflowID,
			"tasks":       chain.Tasks(),
		},
	})

	for _, group := range chain.Groups {
		branch = e.runGroup(ctx, chain.Name, group, branch)
	}

	e.Observer.OnEvent(ctx, observability.Event{
		Type:      EventChainComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "workflows.Executor",
		Data: map[string]any{
			"chain":       chain.Name,
			"workflow_id": branch.WorkflowID,
			"duration_ms": time.Since(started).Milliseconds(),
			"task_errors": len(branch.TaskErrors),
		},
	})

	return branch
}

// runGroup advances the branch through one group. Siblings in a multi-task
// group all see the same pre-group snapshot; their private branches are
// folded back in declaration order before the next group starts.
func (e *Executor) runGroup(ctx context.Context, chainName string, group Group, branch state.State) state.State {
	runnable := make(Group, 0, len(group))
	for _, t := range group {
		if branch.CompletedTasks[t.Name()] {
			continue
		}
		if ready, missing := task.Check(branch, t.Name()); !ready {
			branch = e.skipTask(ctx, chainName, t.Name(), missing, branch)
			continue
		}
		runnable = append(runnable, t)
	}

	switch len(runnable) {
	case 0:
		return branch
	case 1:
		return foldOutcome(branch, e.Runner.Run(ctx, runnable[0], branch))
	}

	snapshot := branch.Clone()
	siblings := make([]state.State, len(runnable))

	var g errgroup.Group
	for i, t := range runnable {
		g.Go(func() error {
			private := snapshot.Clone()
			siblings[i] = foldOutcome(private, e.Runner.Run(ctx, t, private))
			return nil
		})
	}
	// Runner outcomes never surface as errors here, failures are data.
	_ = g.Wait()

	for _, sibling := range siblings {
		branch = branch.Merge(sibling)
	}
	return branch
}

func (e *Executor) skipTask(ctx context.Context, chainName, taskID string, missing []string, branch state.State) state.State {
	e.Observer.OnEvent(ctx, observability.Event{
		Type:      EventTaskSkip,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "workflows.Executor",
		Data: map[string]any{
			"chain":       chainName,
			"task":        taskID,
			"workflow_id": branch.WorkflowID,
			"missing":     missing,
		},
	})

	return branch.Apply(state.Update{
		state.FieldWarnings: fmt.Sprintf(
			"task %s skipped: missing %s", taskID, strings.Join(missing, ", "),
		),
		state.FieldLogLines: fmt.Sprintf("task %s waiting on %s", taskID, strings.Join(missing, ", ")),
	})
}

// foldOutcome applies a task outcome to a branch, marking the task
// completed only on success.
func foldOutcome(branch state.State, outcome task.Outcome) state.State {
	branch = branch.Apply(outcome.StateUpdate())
	if !outcome.Failed() {
		branch = branch.MarkCompleted(outcome.Task)
	}
	return branch
}
