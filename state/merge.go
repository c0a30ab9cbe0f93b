package state

import (
	"context"
	"time"

	"github.com/evmarket/pipeline/observability"
)

// Merge folds a branch state into the receiver and returns the combined
// state. The receiver is the fold accumulator; incoming is one parallel
// branch's result. Neither input is modified.
//
// Per-field policy:
//
//   - result slots: first writer wins, the accumulator's value is kept
//     when both branches wrote the same slot
//   - completed_tasks: set union
//   - errors, warnings, log_lines: union with duplicates dropped
//   - messages: concatenated, accumulator first; the prefix both sides
//     inherited from their common snapshot is not repeated. Two unrelated
//     states that merely happen to open with equal messages also have
//     that run skipped; histories are treated as diverging at the first
//     differing message
//   - task_errors: key union, incoming entry wins on collision
//   - flags: logical OR
//   - iteration: maximum of the two
//   - stage: whichever is further along
//   - pending_tasks, next_tasks: accumulator kept; scheduling is
//     recomputed wholesale after every merge anyway
func (s State) Merge(incoming State) State {
	out := s.Clone()

	for key, value := range incoming.Results {
		if _, taken := out.Results[key]; !taken {
			out.Results[key] = deepCopy(value)
		}
	}

	for task := range incoming.CompletedTasks {
		out.CompletedTasks[task] = true
	}

	out.Errors = unionStrings(out.Errors, incoming.Errors)
	out.Warnings = unionStrings(out.Warnings, incoming.Warnings)
	out.LogLines = unionStrings(out.LogLines, incoming.LogLines)

	// Branches start as clones of the same snapshot, so their message
	// lists share a prefix with the accumulator. Only the branch's own
	// additions are appended; messages past the prefix are never deduped.
	out.Messages = append(out.Messages, incoming.Messages[messagePrefix(s.Messages, incoming.Messages):]...)

	for task, msg := range incoming.TaskErrors {
		out.TaskErrors[task] = msg
	}

	out.ChartsGenerated = out.ChartsGenerated || incoming.ChartsGenerated
	out.ReportGenerated = out.ReportGenerated || incoming.ReportGenerated
	out.WorkflowComplete = out.WorkflowComplete || incoming.WorkflowComplete

	if incoming.Iteration > out.Iteration {
		out.Iteration = incoming.Iteration
	}
	if out.Stage.Before(incoming.Stage) && incoming.Stage.Valid() {
		out.Stage = incoming.Stage
	}
	if out.CompletedAt.IsZero() && !incoming.CompletedAt.IsZero() {
		out.CompletedAt = incoming.CompletedAt
	}

	s.observer().OnEvent(context.Background(), observability.Event{
		Type:      EventStateMerge,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "state",
		Data: map[string]any{
			"workflow_id":     out.WorkflowID,
			"completed_tasks": len(out.CompletedTasks),
			"task_errors":     len(out.TaskErrors),
		},
	})

	return out
}

// messagePrefix returns the length of the shared leading run of the two
// message lists.
func messagePrefix(base, incoming []Message) int {
	n := 0
	for n < len(base) && n < len(incoming) && base[n] == incoming[n] {
		n++
	}
	return n
}

// unionStrings appends the items of extra that are not already present in
// base, preserving first-seen order.
func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, item := range base {
		seen[item] = true
	}
	for _, item := range extra {
		if !seen[item] {
			seen[item] = true
			base = append(base, item)
		}
	}
	return base
}
