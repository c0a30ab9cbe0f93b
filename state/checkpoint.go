package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evmarket/pipeline/observability"
)

// Sentinel errors for checkpoint operations.
var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrCheckpointSave     = errors.New("checkpoint save failed")
	ErrCheckpointLoad     = errors.New("checkpoint load failed")
)

// CheckpointStore persists workflow state snapshots keyed by workflow ID.
//
// The orchestrator saves a checkpoint after every pass so an interrupted
// run can resume from its last consistent state. Implementations must be
// safe for concurrent use.
type CheckpointStore interface {
	// Save persists the state, overwriting any checkpoint for the same
	// workflow ID.
	Save(ctx context.Context, s State) error

	// Load retrieves the state for the given workflow ID. Returns
	// ErrCheckpointNotFound if no checkpoint exists.
	Load(ctx context.Context, workflowID string) (State, error)

	// Delete removes the checkpoint for the given workflow ID. Missing
	// checkpoints are not an error.
	Delete(ctx context.Context, workflowID string) error

	// List returns the workflow IDs with stored checkpoints.
	List(ctx context.Context) ([]string, error)
}

type memoryCheckpointStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryCheckpointStore creates a CheckpointStore that keeps snapshots
// in process memory. Registered by default as "memory"; checkpoints are
// lost when the process exits.
func NewMemoryCheckpointStore() CheckpointStore {
	return &memoryCheckpointStore{states: make(map[string]State)}
}

func (m *memoryCheckpointStore) Save(_ context.Context, s State) error {
	if s.WorkflowID == "" {
		return fmt.Errorf("%w: empty workflow_id", ErrCheckpointSave)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.WorkflowID] = s.Clone()
	return nil
}

func (m *memoryCheckpointStore) Load(_ context.Context, workflowID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[workflowID]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, workflowID)
	}
	return s.Clone(), nil
}

func (m *memoryCheckpointStore) Delete(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, workflowID)
	return nil
}

func (m *memoryCheckpointStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids, nil
}

var (
	storeMu          sync.RWMutex
	checkpointStores = map[string]CheckpointStore{
		"memory": NewMemoryCheckpointStore(),
	}
)

// GetCheckpointStore retrieves a CheckpointStore by name from the registry.
// The "memory" store is always available; others are added through
// RegisterCheckpointStore before the orchestrator starts.
func GetCheckpointStore(name string) (CheckpointStore, error) {
	storeMu.RLock()
	defer storeMu.RUnlock()
	store, ok := checkpointStores[name]
	if !ok {
		return nil, fmt.Errorf("unknown checkpoint store: %s", name)
	}
	return store, nil
}

// RegisterCheckpointStore adds a named CheckpointStore to the registry,
// replacing any store previously registered under the same name.
func RegisterCheckpointStore(name string, store CheckpointStore) {
	storeMu.Lock()
	defer storeMu.Unlock()
	checkpointStores[name] = store
}

// Checkpoint saves the state to the store and reports the outcome to the
// state's observer. It is the one code path the orchestrator uses for
// persistence so every save is observable.
func Checkpoint(ctx context.Context, store CheckpointStore, s State) error {
	err := store.Save(ctx, s)

	data := map[string]any{
		"workflow_id": s.WorkflowID,
		"stage":       string(s.Stage),
		"iteration":   s.Iteration,
	}
	level := observability.LevelVerbose
	if err != nil {
		data["error"] = err.Error()
		level = observability.LevelError
	}
	s.observer().OnEvent(ctx, observability.Event{
		Type:      EventCheckpointSave,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "checkpoint",
		Data:      data,
	})

	if err != nil {
		return fmt.Errorf("%w: %v", ErrCheckpointSave, err)
	}
	return nil
}
