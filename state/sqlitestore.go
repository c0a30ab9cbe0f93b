package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteCheckpointStore struct {
	db *sql.DB
}

// NewSQLiteCheckpointStore creates a CheckpointStore backed by a SQLite
// database at path. The parent directory is created if needed and the
// schema is initialized on open. The returned store keeps history: every
// save also appends to a log table so past snapshots of a workflow can be
// inspected after the fact.
func NewSQLiteCheckpointStore(path string) (CheckpointStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpointSave, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &sqliteCheckpointStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteCheckpointStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS checkpoints (
  workflow_id TEXT PRIMARY KEY,
  stage TEXT NOT NULL,
  iteration INTEGER NOT NULL,
  updated_at_ns INTEGER NOT NULL,
  state_json TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS checkpoint_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  workflow_id TEXT NOT NULL,
  stage TEXT NOT NULL,
  iteration INTEGER NOT NULL,
  saved_at_ns INTEGER NOT NULL,
  state_json TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoint_log_workflow ON checkpoint_log (workflow_id, saved_at_ns);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *sqliteCheckpointStore) Save(ctx context.Context, st State) error {
	if st.WorkflowID == "" {
		return fmt.Errorf("%w: empty workflow_id", ErrCheckpointSave)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, st.WorkflowID, err)
	}

	now := time.Now().UnixNano()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, st.WorkflowID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO checkpoints (workflow_id, stage, iteration, updated_at_ns, state_json)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(workflow_id) DO UPDATE SET
  stage = excluded.stage,
  iteration = excluded.iteration,
  updated_at_ns = excluded.updated_at_ns,
  state_json = excluded.state_json;`,
		st.WorkflowID, string(st.Stage), st.Iteration, now, string(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, st.WorkflowID, err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO checkpoint_log (workflow_id, stage, iteration, saved_at_ns, state_json)
VALUES (?, ?, ?, ?, ?);`,
		st.WorkflowID, string(st.Stage), st.Iteration, now, string(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, st.WorkflowID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckpointSave, st.WorkflowID, err)
	}
	return nil
}

func (s *sqliteCheckpointStore) Load(ctx context.Context, workflowID string) (State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM checkpoints WHERE workflow_id = ?;`, workflowID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, workflowID)
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: %s: %v", ErrCheckpointLoad, workflowID, err)
	}
	return decodeCheckpoint([]byte(raw), workflowID)
}

func (s *sqliteCheckpointStore) Delete(ctx context.Context, workflowID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE workflow_id = ?;`, workflowID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", workflowID, err)
	}
	return nil
}

func (s *sqliteCheckpointStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workflow_id FROM checkpoints ORDER BY workflow_id;`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpointLoad, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCheckpointLoad, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpointLoad, err)
	}
	return ids, nil
}

// Close releases the underlying database handle.
func (s *sqliteCheckpointStore) Close() error {
	return s.db.Close()
}
