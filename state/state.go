package state

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/evmarket/pipeline/observability"
)

// Result slot names. Each slot is owned by exactly one producing task per
// stage; once set it is read-only for downstream consumers.
const (
	SlotMarketTrends       = "market_trends"
	SlotGovernmentPolicies = "government_policies"
	SlotMarketData         = "market_data"
	SlotConsumerPatterns   = "consumer_patterns"
	SlotCompanyAnalysis    = "company_analysis"
	SlotCompanyTechData    = "company_tech_data"
	SlotTechTrends         = "tech_trends"
	SlotStockAnalysis      = "stock_analysis"
	SlotCharts             = "charts"
	SlotChartFiles         = "chart_files"
	SlotDashboard          = "dashboard"
	SlotFinalReport        = "final_report"
	SlotReportPaths        = "report_paths"
)

// KnownSlots is the declared result-slot schema. Updates targeting any other
// key still land in Results but raise a warning entry.
var KnownSlots = map[string]bool{
	SlotMarketTrends:       true,
	SlotGovernmentPolicies: true,
	SlotMarketData:         true,
	SlotConsumerPatterns:   true,
	SlotCompanyAnalysis:    true,
	SlotCompanyTechData:    true,
	SlotTechTrends:         true,
	SlotStockAnalysis:      true,
	SlotCharts:             true,
	SlotChartFiles:         true,
	SlotDashboard:          true,
	SlotFinalReport:        true,
	SlotReportPaths:        true,
}

// Boolean flag field names, settable through Apply and OR-combined on merge.
const (
	FlagChartsGenerated  = "charts_generated"
	FlagReportGenerated  = "report_generated"
	FlagWorkflowComplete = "workflow_complete"
)

// State is the shared record threaded through every pipeline task. It is an
// immutable value type: all operations return a new State, and Clone copies
// nested containers so concurrent branches can never alias each other's data.
//
// The Observer receives state lifecycle events and is excluded from
// checkpoint serialization.
type State struct {
	WorkflowID  string    `json:"workflow_id"`
	Stage       Stage     `json:"stage"`
	Iteration   int       `json:"iteration"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	CompletedTasks map[string]bool   `json:"completed_tasks"`
	PendingTasks   []string          `json:"pending_tasks"`
	NextTasks      []string          `json:"next_tasks"`
	TaskErrors     map[string]string `json:"task_errors"`

	Results map[string]any `json:"results"`

	ChartsGenerated  bool `json:"charts_generated"`
	ReportGenerated  bool `json:"report_generated"`
	WorkflowComplete bool `json:"workflow_complete"`

	Errors   []string  `json:"errors"`
	Warnings []string  `json:"warnings"`
	LogLines []string  `json:"log_lines"`
	Messages []Message `json:"messages"`

	Observer observability.Observer `json:"-"`
}

// NewInitial creates the starting state for a fresh workflow run: a new
// workflow ID, stage initialization, iteration zero, all result slots unset.
//
// If observer is nil, NoOpObserver is used.
func NewInitial(observer observability.Observer) State {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	now := time.Now()
	s := State{
		WorkflowID:     newWorkflowID(now),
		Stage:          StageInitialization,
		StartedAt:      now,
		CompletedTasks: make(map[string]bool),
		TaskErrors:     make(map[string]string),
		Results:        make(map[string]any),
		Observer:       observer,
	}
	s.LogLines = append(s.LogLines, fmt.Sprintf(
		"workflow %s initialized at %s", s.WorkflowID, now.Format(time.RFC3339),
	))

	observer.OnEvent(context.Background(), observability.Event{
		Type:      EventStateCreate,
		Level:     observability.LevelVerbose,
		Timestamp: now,
		Source:    "state",
		Data:      map[string]any{"workflow_id": s.WorkflowID},
	})

	return s
}

func newWorkflowID(now time.Time) string {
	id := uuid.Must(uuid.NewV7()).String()
	return fmt.Sprintf("wf_%s_%s", now.Format("20060102_150405"), id[:8])
}

// Clone creates an independent copy of the State. Nested containers in
// Results are copied recursively so a branch can never mutate its sibling's
// data before the merge point. The observer reference is shared.
func (s State) Clone() State {
	clone := s
	clone.CompletedTasks = maps.Clone(s.CompletedTasks)
	clone.PendingTasks = slices.Clone(s.PendingTasks)
	clone.NextTasks = slices.Clone(s.NextTasks)
	clone.TaskErrors = maps.Clone(s.TaskErrors)
	clone.Errors = slices.Clone(s.Errors)
	clone.Warnings = slices.Clone(s.Warnings)
	clone.LogLines = slices.Clone(s.LogLines)
	clone.Messages = slices.Clone(s.Messages)

	clone.Results = make(map[string]any, len(s.Results))
	for k, v := range s.Results {
		clone.Results[k] = deepCopy(v)
	}

	s.observer().OnEvent(context.Background(), observability.Event{
		Type:      EventStateClone,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "state",
		Data:      map[string]any{"workflow_id": s.WorkflowID},
	})

	return clone
}

// deepCopy copies the container shapes JSON round-trips produce. Scalar
// values are returned as-is.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = deepCopy(inner)
		}
		return out
	case map[string]string:
		return maps.Clone(val)
	case []string:
		return slices.Clone(val)
	default:
		return v
	}
}

// Lookup returns the value of a named field: a result slot (present iff
// non-nil) or one of the boolean flags. Used by dependency checking and
// stage guards, which address fields by name.
func (s State) Lookup(field string) (any, bool) {
	switch field {
	case FlagChartsGenerated:
		return s.ChartsGenerated, true
	case FlagReportGenerated:
		return s.ReportGenerated, true
	case FlagWorkflowComplete:
		return s.WorkflowComplete, true
	}

	v, ok := s.Results[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// MarkCompleted returns a copy with the task recorded in completed_tasks
// and removed from next_tasks. The completed set only ever grows.
func (s State) MarkCompleted(taskID string) State {
	next := s.Clone()
	next.CompletedTasks[taskID] = true
	next.NextTasks = slices.DeleteFunc(next.NextTasks, func(t string) bool {
		return t == taskID
	})
	return next
}

// Rollback is the explicit operation for moving the stage backwards; Apply
// silently refuses stage reverts. Returns an error for unknown or
// non-backwards targets.
func (s State) Rollback(target Stage) (State, error) {
	if !target.Valid() {
		return s, fmt.Errorf("invalid rollback target: %s", target)
	}
	if !target.Before(s.Stage) {
		return s, fmt.Errorf("rollback target %s is not before current stage %s", target, s.Stage)
	}

	rolled := s.Clone()
	rolled.Stage = target
	rolled.LogLines = append(rolled.LogLines, fmt.Sprintf(
		"rolled back from %s to %s at %s", s.Stage, target, time.Now().Format(time.RFC3339),
	))

	s.observer().OnEvent(context.Background(), observability.Event{
		Type:      EventStateRollback,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "state",
		Data:      map[string]any{"from": string(s.Stage), "to": string(target)},
	})

	return rolled, nil
}

// WithObserver returns a copy of the state wired to the given observer.
// Used after loading a checkpoint, which cannot serialize the observer.
func (s State) WithObserver(observer observability.Observer) State {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	s.Observer = observer
	return s
}

func (s State) observer() observability.Observer {
	if s.Observer == nil {
		return observability.NoOpObserver{}
	}
	return s.Observer
}
