package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/prioritize/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run is one planned ranking run.
type Run struct {
	ID             string   `json:"id"`
	Seq            int64    `json:"seq"`
	PlanID         string   `json:"plan_id"`
	Policy         string   `json:"policy"`
	IssueType      string   `json:"issue_type,omitempty"`
	DryRun         bool     `json:"dry_run"`
	Old            []string `json:"old"`
	New            []string `json:"new"`
	MoveCount      int      `json:"move_count"`
	EngineVersion  string   `json:"engine_version"`
	JournalVersion string   `json:"journal_version"`
}

// MoveRecord is a journaled move.
type MoveRecord struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	Seq          int    `json:"seq"`
	ItemKey      string `json:"item_key"`
	AfterKey     string `json:"after_key"`
	Message      string `json:"message,omitempty"`
	AppliedRunID string `json:"applied_run_id,omitempty"`
}

// Applied reports whether some run applied the move.
func (m MoveRecord) Applied() bool {
	return m.AppliedRunID != ""
}

// Move returns the move in engine form.
func (m MoveRecord) Move() ir.Move {
	return ir.Move{Seq: m.Seq, ItemKey: m.ItemKey, AfterKey: m.AfterKey}
}

// Message is a comment posted on an item during a run.
type Message struct {
	RunID   string `json:"run_id"`
	Seq     int    `json:"seq"`
	ItemKey string `json:"item_key"`
	Body    string `json:"body"`
}

// marshalKeys converts a key order to canonical JSON TEXT for storage.
func marshalKeys(keys []string) (string, error) {
	if keys == nil {
		keys = []string{}
	}
	data, err := ir.MarshalCanonical(keys)
	if err != nil {
		return "", fmt.Errorf("marshal keys: %w", err)
	}
	return string(data), nil
}

// unmarshalKeys parses a stored key order. Returns an empty slice, never nil.
func unmarshalKeys(data string) ([]string, error) {
	keys := []string{}
	if data == "" {
		return keys, nil
	}
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal keys: %w", err)
	}
	return keys, nil
}
