package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evmarket/pipeline/state"
)

// writeSummaryArtifact persists the run summary next to the checkpoints
// when the workflow completes, so the outcome survives checkpoint cleanup.
func (o *Orchestrator) writeSummaryArtifact(_ context.Context, s state.State) error {
	dir := o.cfg.Checkpoint.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("summary dir: %w", err)
	}

	data, err := json.MarshalIndent(s.Summarize(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	path := filepath.Join(dir, s.WorkflowID+"_summary.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// SummaryPath returns where the completion summary artifact for a
// workflow is written.
func (o *Orchestrator) SummaryPath(workflowID string) string {
	dir := o.cfg.Checkpoint.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, workflowID+"_summary.json")
}
