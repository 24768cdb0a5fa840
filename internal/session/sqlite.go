package session

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/normanking/zira/internal/data"
)

//go:embed migrations/001_sessions.sql
var sessionsSchema string

// Checkpointer persists session snapshots.
type Checkpointer interface {
	Save(ctx context.Context, snap *Snapshot) error
	// Load returns ErrNotFound when no checkpoint exists for id.
	Load(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// Summary describes a stored checkpoint without its messages.
type Summary struct {
	ID           string
	MessageCount int
	LastOutcome  Outcome
	UpdatedAt    time.Time
}

// SQLiteCheckpointer stores snapshots in a SQLite database.
type SQLiteCheckpointer struct {
	store *data.Store
}

// OpenSQLiteCheckpointer opens (or creates) the checkpoint database at path.
func OpenSQLiteCheckpointer(path string) (*SQLiteCheckpointer, error) {
	store, err := data.Open(path, data.Migration{Name: "sessions", Schema: sessionsSchema})
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	return &SQLiteCheckpointer{store: store}, nil
}

// Close closes the underlying database.
func (c *SQLiteCheckpointer) Close() error {
	return c.store.Close()
}

// Save upserts the snapshot for snap.ID.
func (c *SQLiteCheckpointer) Save(ctx context.Context, snap *Snapshot) error {
	blob, err := Encode(snap)
	if err != nil {
		return err
	}

	_, err = c.store.DB().ExecContext(ctx, `
		INSERT INTO session_checkpoints (session_id, snapshot, message_count, last_outcome, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			message_count = excluded.message_count,
			last_outcome = excluded.last_outcome,
			updated_at = excluded.updated_at`,
		snap.ID, blob, len(snap.Messages), string(snap.LastOutcome), snap.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", snap.ID, err)
	}
	return nil
}

// Load returns the stored snapshot for id.
func (c *SQLiteCheckpointer) Load(ctx context.Context, id string) (*Snapshot, error) {
	var blob []byte
	err := c.store.DB().QueryRowContext(ctx,
		`SELECT snapshot FROM session_checkpoints WHERE session_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	return Decode(blob)
}

// List returns stored checkpoints, most recently updated first.
func (c *SQLiteCheckpointer) List(ctx context.Context) ([]Summary, error) {
	rows, err := c.store.DB().QueryContext(ctx, `
		SELECT session_id, message_count, last_outcome, updated_at
		FROM session_checkpoints
		ORDER BY updated_at DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var outcome string
		if err := rows.Scan(&s.ID, &s.MessageCount, &outcome, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		s.LastOutcome = Outcome(outcome)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes the checkpoint for id. Deleting a missing id is not an error.
func (c *SQLiteCheckpointer) Delete(ctx context.Context, id string) error {
	if _, err := c.store.DB().ExecContext(ctx,
		`DELETE FROM session_checkpoints WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}
	return nil
}
