package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type fileCheckpointStore struct {
	dir string
}

// NewFileCheckpointStore creates a CheckpointStore backed by JSON files
// under dir, one file per workflow ID. Saves are atomic: the snapshot is
// written to a temp file and renamed into place, so a crash mid-write
// never corrupts the previous checkpoint.
func NewFileCheckpointStore(dir string) CheckpointStore {
	return &fileCheckpointStore{dir: dir}
}

func (f *fileCheckpointStore) path(workflowID string) string {
	return filepath.Join(f.dir, workflowID+".json")
}

func (f *fileCheckpointStore) Save(_ context.Context, s State) error {
	if s.WorkflowID == "" {
		return fmt.Errorf("%w: empty workflow_id", ErrCheckpointSave)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrCheckpointSave, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, s.WorkflowID, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, s.WorkflowID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, s.WorkflowID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, s.WorkflowID, err)
	}
	if err := os.Rename(tmpName, f.path(s.WorkflowID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, s.WorkflowID, err)
	}
	return nil
}

func (f *fileCheckpointStore) Load(_ context.Context, workflowID string) (State, error) {
	data, err := os.ReadFile(f.path(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, workflowID)
		}
		return State{}, fmt.Errorf("%w: %s: %v", ErrCheckpointLoad, workflowID, err)
	}
	return decodeCheckpoint(data, workflowID)
}

func (f *fileCheckpointStore) Delete(_ context.Context, workflowID string) error {
	if err := os.Remove(f.path(workflowID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint %s: %w", workflowID, err)
	}
	return nil
}

func (f *fileCheckpointStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCheckpointLoad, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// LoadCheckpointFile reads a checkpoint directly from a file path, outside
// any store. Used by the resume flow when the operator points at a
// specific snapshot on disk.
func LoadCheckpointFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("%w: %s: %v", ErrCheckpointLoad, path, err)
	}
	return decodeCheckpoint(data, path)
}

func decodeCheckpoint(data []byte, ref string) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("%w: %s: %v", ErrCheckpointLoad, ref, err)
	}
	if problems := s.Validate(); len(problems) > 0 {
		return State{}, fmt.Errorf("%w: %s: %s", ErrCheckpointLoad, ref, strings.Join(problems, "; "))
	}
	return s, nil
}
