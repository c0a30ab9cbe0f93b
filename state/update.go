package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/evmarket/pipeline/observability"
)

// Update is a partial state produced by one task execution, keyed by field
// name. Apply folds it into a state according to per-field rules:
//
//   - messages, errors, warnings, log_lines: appended
//   - next_tasks, pending_tasks, completed_tasks: replaced wholesale
//   - task_errors: merged, incoming entry overwrites per task
//   - stage: set, but never backwards (Rollback is the explicit revert)
//   - workflow_id: immutable, attempts to change it are dropped
//   - declared result slots and flags: overwritten
//   - anything else: stored in Results with a warning entry
type Update map[string]any

// Field names addressable through an Update besides the result slots
// and flags.
const (
	FieldMessages       = "messages"
	FieldErrors         = "errors"
	FieldWarnings       = "warnings"
	FieldLogLines       = "log_lines"
	FieldNextTasks      = "next_tasks"
	FieldPendingTasks   = "pending_tasks"
	FieldCompletedTasks = "completed_tasks"
	FieldTaskErrors     = "task_errors"
	FieldStage          = "stage"
	FieldIteration      = "iteration"
	FieldWorkflowID     = "workflow_id"
)

// Apply returns a new state with the update folded in. The receiver is not
// modified. Unknown keys are tolerated but recorded as warnings rather than
// failing the pipeline.
func (s State) Apply(update Update) State {
	next := s.Clone()

	// Sorted keys keep warning order deterministic across runs.
	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := update[key]
		switch key {
		case FieldMessages:
			next.Messages = append(next.Messages, toMessages(value)...)
		case FieldErrors:
			next.Errors = append(next.Errors, toStrings(value)...)
		case FieldWarnings:
			next.Warnings = append(next.Warnings, toStrings(value)...)
		case FieldLogLines:
			next.LogLines = append(next.LogLines, toStrings(value)...)
		case FieldNextTasks:
			next.NextTasks = toStrings(value)
		case FieldPendingTasks:
			next.PendingTasks = toStrings(value)
		case FieldCompletedTasks:
			next.CompletedTasks = toTaskSet(value)
		case FieldTaskErrors:
			if next.TaskErrors == nil {
				next.TaskErrors = make(map[string]string)
			}
			for task, msg := range toTaskErrors(value) {
				next.TaskErrors[task] = msg
			}
		case FieldStage:
			stage := toStage(value)
			if !stage.Valid() {
				next.Warnings = append(next.Warnings, fmt.Sprintf("update carried invalid stage: %v", value))
			} else if stage.Before(next.Stage) {
				next.Warnings = append(next.Warnings, fmt.Sprintf(
					"update tried to revert stage %s to %s; use Rollback", next.Stage, stage,
				))
			} else {
				next.Stage = stage
			}
		case FieldIteration:
			if n, ok := value.(int); ok {
				next.Iteration = n
			}
		case FieldWorkflowID:
			if id, ok := value.(string); ok && id != next.WorkflowID {
				next.Warnings = append(next.Warnings, "update tried to change immutable workflow_id")
			}
		case FlagChartsGenerated:
			next.ChartsGenerated = toBool(value)
		case FlagReportGenerated:
			next.ReportGenerated = toBool(value)
		case FlagWorkflowComplete:
			next.WorkflowComplete = toBool(value)
		default:
			if !KnownSlots[key] {
				next.Warnings = append(next.Warnings, fmt.Sprintf("new field added to state: %s", key))
			}
			next.Results[key] = deepCopy(value)
		}
	}

	s.observer().OnEvent(context.Background(), observability.Event{
		Type:      EventStateApply,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "state",
		Data:      map[string]any{"workflow_id": s.WorkflowID, "fields": keys},
	})

	return next
}

func toStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func toMessages(v any) []Message {
	switch val := v.(type) {
	case []Message:
		return val
	case Message:
		return []Message{val}
	default:
		return nil
	}
}

func toTaskSet(v any) map[string]bool {
	switch val := v.(type) {
	case map[string]bool:
		out := make(map[string]bool, len(val))
		for task, done := range val {
			if done {
				out[task] = true
			}
		}
		return out
	case []string:
		out := make(map[string]bool, len(val))
		for _, task := range val {
			out[task] = true
		}
		return out
	default:
		return make(map[string]bool)
	}
}

func toTaskErrors(v any) map[string]string {
	if m, ok := v.(map[string]string); ok {
		return m
	}
	return nil
}

func toStage(v any) Stage {
	switch val := v.(type) {
	case Stage:
		return val
	case string:
		return Stage(val)
	default:
		return Stage("")
	}
}

func toBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
