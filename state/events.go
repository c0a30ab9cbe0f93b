package state

import "github.com/evmarket/pipeline/observability"

const (
	// State operations
	EventStateCreate   observability.EventType = "state.create"
	EventStateClone    observability.EventType = "state.clone"
	EventStateApply    observability.EventType = "state.apply"
	EventStateMerge    observability.EventType = "state.merge"
	EventStateRollback observability.EventType = "state.rollback"

	// Checkpointing
	EventCheckpointSave observability.EventType = "checkpoint.save"
	EventCheckpointLoad observability.EventType = "checkpoint.load"
)
