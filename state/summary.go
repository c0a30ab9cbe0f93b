package state

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Summary is a compact view of a workflow state for display and logging.
type Summary struct {
	WorkflowID string        `json:"workflow_id"`
	Stage      Stage         `json:"stage"`
	Iteration  int           `json:"iteration"`
	Elapsed    time.Duration `json:"elapsed"`
	Complete   bool          `json:"complete"`

	CompletedTasks []string `json:"completed_tasks"`
	PendingTasks   []string `json:"pending_tasks"`
	FailedTasks    []string `json:"failed_tasks"`

	ResultSlots []string `json:"result_slots"`
	ErrorCount  int      `json:"error_count"`
	WarnCount   int      `json:"warning_count"`
}

// Summarize builds a summary as of now. Task and slot lists are sorted so
// the output is stable.
func (s State) Summarize() Summary {
	sum := Summary{
		WorkflowID: s.WorkflowID,
		Stage:      s.Stage,
		Iteration:  s.Iteration,
		Complete:   s.WorkflowComplete,
		ErrorCount: len(s.Errors),
		WarnCount:  len(s.Warnings),
	}

	end := s.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	if !s.StartedAt.IsZero() {
		sum.Elapsed = end.Sub(s.StartedAt).Round(time.Millisecond)
	}

	for task := range s.CompletedTasks {
		sum.CompletedTasks = append(sum.CompletedTasks, task)
	}
	sort.Strings(sum.CompletedTasks)

	sum.PendingTasks = append(sum.PendingTasks, s.PendingTasks...)
	sort.Strings(sum.PendingTasks)

	for task := range s.TaskErrors {
		sum.FailedTasks = append(sum.FailedTasks, task)
	}
	sort.Strings(sum.FailedTasks)

	for slot := range s.Results {
		sum.ResultSlots = append(sum.ResultSlots, slot)
	}
	sort.Strings(sum.ResultSlots)

	return sum
}

// Render writes the summary as a short human-readable block.
func (sum Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "workflow %s\n", sum.WorkflowID)
	fmt.Fprintf(&b, "  stage:      %s (iteration %d)\n", sum.Stage, sum.Iteration)
	fmt.Fprintf(&b, "  elapsed:    %s\n", sum.Elapsed)
	fmt.Fprintf(&b, "  completed:  %s\n", joinOrDash(sum.CompletedTasks))
	if len(sum.PendingTasks) > 0 {
		fmt.Fprintf(&b, "  pending:    %s\n", strings.Join(sum.PendingTasks, ", "))
	}
	if len(sum.FailedTasks) > 0 {
		fmt.Fprintf(&b, "  failed:     %s\n", strings.Join(sum.FailedTasks, ", "))
	}
	fmt.Fprintf(&b, "  results:    %s\n", joinOrDash(sum.ResultSlots))
	fmt.Fprintf(&b, "  errors:     %d, warnings: %d\n", sum.ErrorCount, sum.WarnCount)
	if sum.Complete {
		b.WriteString("  status:     complete\n")
	} else {
		b.WriteString("  status:     in progress\n")
	}
	return b.String()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// TaskStatus classifies one task's progress within a run.
type TaskStatus string

const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskPending   TaskStatus = "pending"
)

// TaskProgress reports the status of every task the state knows about
// (completed, failed, or scheduled) and the overall completion ratio.
// A task that failed and later completed counts as completed.
func (s State) TaskProgress() (map[string]TaskStatus, float64) {
	progress := make(map[string]TaskStatus)
	for _, task := range s.PendingTasks {
		progress[task] = TaskPending
	}
	for _, task := range s.NextTasks {
		progress[task] = TaskPending
	}
	for task := range s.TaskErrors {
		progress[task] = TaskFailed
	}
	for task := range s.CompletedTasks {
		progress[task] = TaskCompleted
	}

	if len(progress) == 0 {
		return progress, 0
	}
	return progress, float64(len(s.CompletedTasks)) / float64(len(progress))
}
