package pipeline

import "github.com/evmarket/pipeline/observability"

// Orchestrator event types.
const (
	EventPassStart       observability.EventType = "orchestrator.pass_start"
	EventPassComplete    observability.EventType = "orchestrator.pass_complete"
	EventStageTransition observability.EventType = "stage.transition"
	EventStageHold       observability.EventType = "stage.hold"
	EventHealthIssue     observability.EventType = "health.issue"
	EventWorkflowDone    observability.EventType = "workflow.complete"
	EventWorkflowFatal   observability.EventType = "workflow.fatal"
)
