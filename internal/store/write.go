package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/prioritize/internal/ir"
)

// WriteRun inserts a run record and returns its sequence number.
// The sequence is assigned by the store. Uses ON CONFLICT(id) DO NOTHING
// for idempotency: writing the same run ID twice returns the existing seq.
func (s *Store) WriteRun(ctx context.Context, run Run) (int64, error) {
	oldJSON, err := marshalKeys(run.Old)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}
	newJSON, err := marshalKeys(run.New)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&seq)
	switch {
	case err == nil:
		return seq, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("write run: select existing: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, plan_id, policy, issue_type, dry_run, old_order, new_order, move_count, engine_version, journal_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		seq,
		run.PlanID,
		run.Policy,
		run.IssueType,
		run.DryRun,
		oldJSON,
		newJSON,
		run.MoveCount,
		run.EngineVersion,
		run.JournalVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("write run: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run: commit: %w", err)
	}
	return seq, nil
}

// WriteMoves journals a plan's moves. messages, when non-nil, must have one
// entry per move. Moves already journaled for the plan are left untouched,
// including their applied state.
func (s *Store) WriteMoves(ctx context.Context, planID string, moves []ir.Move, messages []string) error {
	if messages != nil && len(messages) != len(moves) {
		return fmt.Errorf("write moves: %d messages for %d moves", len(messages), len(moves))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write moves: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO moves
		(id, plan_id, seq, item_key, after_key, message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write moves: prepare: %w", err)
	}
	defer stmt.Close()

	for i, m := range moves {
		id, err := ir.MoveID(planID, m)
		if err != nil {
			return fmt.Errorf("write moves: %w", err)
		}
		var msg string
		if messages != nil {
			msg = messages[i]
		}
		if _, err := stmt.ExecContext(ctx, id, planID, m.Seq, m.ItemKey, m.AfterKey, msg); err != nil {
			return fmt.Errorf("write moves: insert seq %d: %w", m.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write moves: commit: %w", err)
	}
	return nil
}

// MarkApplied records that runID applied the move. Marking an already
// applied move is a no-op; the first applying run is kept.
func (s *Store) MarkApplied(ctx context.Context, moveID, runID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE moves SET applied_run_id = ?
		WHERE id = ? AND applied_run_id IS NULL
	`, runID, moveID)
	if err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark applied: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moves WHERE id = ?`, moveID).Scan(&count); err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("mark applied: move %s: %w", moveID, ErrNotFound)
	}
	return nil
}

// WriteMessage records a message posted on an item. Uses ON CONFLICT DO
// NOTHING on (run_id, seq) for idempotency.
func (s *Store) WriteMessage(ctx context.Context, msg Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
		(run_id, seq, item_key, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		msg.RunID,
		msg.Seq,
		msg.ItemKey,
		msg.Body,
	)
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
