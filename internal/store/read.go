package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = `id, seq, plan_id, policy, issue_type, dry_run, old_order, new_order, move_count, engine_version, journal_version`

// ReadRun returns the run with the given ID, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns all runs in journal order.
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadMoves returns the journaled moves of a plan in sequence order.
// Returns an empty slice (not nil) if the plan has no moves.
func (s *Store) ReadMoves(ctx context.Context, planID string) ([]MoveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, seq, item_key, after_key, message, COALESCE(applied_run_id, '')
		FROM moves
		WHERE plan_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	moves := []MoveRecord{}
	for rows.Next() {
		var m MoveRecord
		if err := rows.Scan(&m.ID, &m.PlanID, &m.Seq, &m.ItemKey, &m.AfterKey, &m.Message, &m.AppliedRunID); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moves: %w", err)
	}
	return moves, nil
}

// AppliedMoveIDs returns the IDs of the plan's moves that some run applied.
func (s *Store) AppliedMoveIDs(ctx context.Context, planID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM moves
		WHERE plan_id = ? AND applied_run_id IS NOT NULL
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("query applied moves: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan applied move: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied moves: %w", err)
	}
	return applied, nil
}

// CountApplied returns how many moves runID applied.
func (s *Store) CountApplied(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM moves WHERE applied_run_id = ?
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count applied: %w", err)
	}
	return n, nil
}

// ReadMessages returns the messages posted during a run, in sequence order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadMessages(ctx context.Context, runID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, item_key, body
		FROM messages
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.RunID, &m.Seq, &m.ItemKey, &m.Body); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run              Run
		oldJSON, newJSON string
	)
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.PlanID,
		&run.Policy,
		&run.IssueType,
		&run.DryRun,
		&oldJSON,
		&newJSON,
		&run.MoveCount,
		&run.EngineVersion,
		&run.JournalVersion,
	)
	if err != nil {
		return Run{}, err
	}
	if run.Old, err = unmarshalKeys(oldJSON); err != nil {
		return Run{}, err
	}
	if run.New, err = unmarshalKeys(newJSON); err != nil {
		return Run{}, err
	}
	return run, nil
}
