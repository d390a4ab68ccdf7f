// Package tracker defines the collaborators the engine's callers talk to:
// where snapshots come from, where moves go, and where messages are posted.
//
// The engine itself never imports this package. FileBacklog is a tracker
// backed by a YAML file; ListSink and WriterSink are lightweight sinks for
// previews and tests.
package tracker

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/prioritize/internal/ir"
)

// SnapshotProvider returns the current backlog in rank order.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) ([]ir.Item, error)
}

// MoveSink places an item directly after another in the external ranking.
// Implementations must be idempotent: repeating a move is a no-op.
type MoveSink interface {
	Rank(ctx context.Context, itemKey, afterKey string) error
}

// MessageSink posts a human-readable message on an item.
type MessageSink interface {
	Post(ctx context.Context, key, message string) error
}

// FieldSink writes derived field values back to the tracker.
type FieldSink interface {
	SetPriority(ctx context.Context, key string, p ir.Priority) error
	Transition(ctx context.Context, key string, category ir.StatusCategory, status string) error
}

// StaticProvider serves a fixed snapshot.
type StaticProvider []ir.Item

// Snapshot returns a copy of the fixed items.
func (p StaticProvider) Snapshot(ctx context.Context) ([]ir.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone([]ir.Item(p)), nil
}

// ListSink realizes moves on an in-memory key list.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ListSink struct {
	mu    sync.Mutex
	keys  []string
	calls int
}

// NewListSink creates a sink over keys in their current order.
func NewListSink(keys []string) *ListSink {
	return &ListSink{keys: slices.Clone(keys)}
}

// Rank moves itemKey directly after afterKey.
func (s *ListSink) Rank(ctx context.Context, itemKey, afterKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	keys, err := moveAfter(s.keys, itemKey, afterKey, func(k string) string { return k })
	if err != nil {
		return err
	}
	s.keys = keys
	return nil
}

// Order returns the current key order.
func (s *ListSink) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.keys)
}

// Calls returns how many times Rank was called.
func (s *ListSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// moveAfter returns list with the element keyed itemKey placed directly
// after the element keyed afterKey.
func moveAfter[T any](list []T, itemKey, afterKey string, key func(T) string) ([]T, error) {
	if itemKey == afterKey {
		return nil, fmt.Errorf("cannot rank %s after itself", itemKey)
	}
	from := slices.IndexFunc(list, func(v T) bool { return key(v) == itemKey })
	if from < 0 {
		return nil, fmt.Errorf("unknown item %s", itemKey)
	}
	if slices.IndexFunc(list, func(v T) bool { return key(v) == afterKey }) < 0 {
		return nil, fmt.Errorf("unknown item %s", afterKey)
	}

	moved := list[from]
	out := slices.Delete(slices.Clone(list), from, from+1)
	to := slices.IndexFunc(out, func(v T) bool { return key(v) == afterKey })
	return slices.Insert(out, to+1, moved), nil
}

// WriterSink writes posted messages to an io.Writer, one block per post.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	footer string
}

// NewWriterSink creates a sink writing to w. A non-empty footer is appended
// to every message after a blank line.
func NewWriterSink(w io.Writer, footer string) *WriterSink {
	return &WriterSink{w: w, footer: footer}
}

// Post writes "key: message", then the footer.
func (s *WriterSink) Post(ctx context.Context, key, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.w, "%s: %s\n", key, Comment([]string{message}, s.footer))
	return err
}

// Comment joins messages into one comment body with an optional footer.
func Comment(messages []string, footer string) string {
	body := strings.Join(messages, "\n")
	if footer != "" {
		body += "\n\n" + footer
	}
	return body
}
