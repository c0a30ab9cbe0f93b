package workflows

import "github.com/evmarket/pipeline/observability"

// Workflow execution event types.
const (
	EventChainStart    observability.EventType = "chain.start"
	EventChainComplete observability.EventType = "chain.complete"
	EventTaskSkip      observability.EventType = "chain.task_skip"

	EventParallelStart    observability.EventType = "parallel.start"
	EventParallelComplete observability.EventType = "parallel.complete"
	EventBranchFail       observability.EventType = "parallel.branch_fail"
)
