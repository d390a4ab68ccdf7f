// Package apply realizes a plan's moves against a tracker.
//
// Moves are relative ("place X after Y") and only reach the target order
// when applied in sequence, so the applier is strictly serial: each move is
// retried with Fibonacci backoff and a move that finally fails stops the run.
// With a journal attached, applied moves are recorded and a rerun of the
// same plan skips them.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/ir"
	"github.com/roach88/prioritize/internal/store"
	"github.com/roach88/prioritize/internal/tracker"
)

// Defaults for move retries.
const (
	DefaultMaxRetries = 5
	DefaultInterval   = time.Second
)

// Journal records runs and applied moves. *store.Store implements it.
type Journal interface {
	WriteRun(ctx context.Context, run store.Run) (int64, error)
	WriteMoves(ctx context.Context, planID string, moves []ir.Move, messages []string) error
	MarkApplied(ctx context.Context, moveID, runID string) error
	AppliedMoveIDs(ctx context.Context, planID string) (map[string]bool, error)
	ReadRun(ctx context.Context, id string) (store.Run, error)
	ReadMoves(ctx context.Context, planID string) ([]store.MoveRecord, error)
}

// Applier applies moves to a MoveSink.
type Applier struct {
	sink       tracker.MoveSink
	journal    Journal
	maxRetries uint64
	interval   time.Duration
	logger     *slog.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithJournal records runs and moves in j and enables resume.
func WithJournal(j Journal) Option {
	return func(a *Applier) {
		a.journal = j
	}
}

// WithRetry sets the per-move retry budget. interval is the Fibonacci base
// delay and must be positive; non-positive values keep the default.
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(a *Applier) {
		if maxRetries >= 0 {
			a.maxRetries = uint64(maxRetries)
		}
		if interval > 0 {
			a.interval = interval
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = l
	}
}

// New creates an Applier writing to sink.
func New(sink tracker.MoveSink, opts ...Option) *Applier {
	a := &Applier{
		sink:       sink,
		maxRetries: DefaultMaxRetries,
		interval:   DefaultInterval,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result summarizes one apply.
type Result struct {
	RunID   string
	PlanID  string
	DryRun  bool
	Applied int // Moves sent to the sink by this call
	Skipped int // Moves an earlier run already applied

	// AppliedSeqs lists the Seq of every move this call sent, in order.
	AppliedSeqs []int
}

// permanentError marks a sink failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the applier gives up on the move immediately.
// Sinks use it for failures such as an unknown item key.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Apply journals the plan (when a journal is attached) and applies its
// moves in order. A dry-run plan is journaled but never reaches the sink.
func (a *Applier) Apply(ctx context.Context, plan *engine.Plan, issueType string) (Result, error) {
	res := Result{RunID: plan.RunID, PlanID: plan.PlanID, DryRun: plan.DryRun}

	if a.journal != nil {
		if _, err := a.journal.WriteRun(ctx, runRecord(plan, issueType)); err != nil {
			return res, err
		}
		if err := a.journal.WriteMoves(ctx, plan.PlanID, plan.Moves, plan.Messages); err != nil {
			return res, err
		}
	}

	if plan.DryRun {
		a.logger.Debug("dry run, moves not applied",
			"run_id", plan.RunID,
			"plan_id", plan.PlanID,
			"moves", len(plan.Moves))
		return res, nil
	}

	return a.applyMoves(ctx, res, plan.Moves)
}

// Resume applies the moves of a journaled run that no run has applied yet.
// Applied moves are marked with the original run ID.
func (a *Applier) Resume(ctx context.Context, runID string) (Result, error) {
	if a.journal == nil {
		return Result{}, fmt.Errorf("resume %s: no journal configured", runID)
	}
	run, err := a.journal.ReadRun(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	records, err := a.journal.ReadMoves(ctx, run.PlanID)
	if err != nil {
		return Result{}, err
	}

	moves := make([]ir.Move, len(records))
	for i, r := range records {
		moves[i] = r.Move()
	}
	return a.applyMoves(ctx, Result{RunID: run.ID, PlanID: run.PlanID}, moves)
}

func (a *Applier) applyMoves(ctx context.Context, res Result, moves []ir.Move) (Result, error) {
	applied := map[string]bool{}
	if a.journal != nil {
		var err error
		applied, err = a.journal.AppliedMoveIDs(ctx, res.PlanID)
		if err != nil {
			return res, err
		}
	}

	for _, m := range moves {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		id, err := ir.MoveID(res.PlanID, m)
		if err != nil {
			return res, err
		}
		if applied[id] {
			res.Skipped++
			continue
		}

		if err := a.rank(ctx, m); err != nil {
			return res, fmt.Errorf("move %d (%s after %s): %w", m.Seq, m.ItemKey, m.AfterKey, err)
		}
		res.Applied++
		res.AppliedSeqs = append(res.AppliedSeqs, m.Seq)

		if a.journal != nil {
			if err := a.journal.MarkApplied(ctx, id, res.RunID); err != nil {
				return res, err
			}
		}
		a.logger.Debug("move applied",
			"run_id", res.RunID,
			"seq", m.Seq,
			"item", m.ItemKey,
			"after", m.AfterKey)
	}

	a.logger.Debug("apply finished",
		"run_id", res.RunID,
		"applied", res.Applied,
		"skipped", res.Skipped)
	return res, nil
}

// rank sends one move, retrying transient failures.
func (a *Applier) rank(ctx context.Context, m ir.Move) error {
	b := retry.WithMaxRetries(a.maxRetries, retry.NewFibonacci(a.interval))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := a.sink.Rank(ctx, m.ItemKey, m.AfterKey)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		a.logger.Warn("move failed, retrying",
			"seq", m.Seq,
			"item", m.ItemKey,
			"error", err)
		return retry.RetryableError(err)
	})
}

// shouldRetry reports whether a sink error is transient.
func shouldRetry(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	// Context cancellations/timeouts are permanent from the caller's POV.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func runRecord(plan *engine.Plan, issueType string) store.Run {
	return store.Run{
		ID:             plan.RunID,
		PlanID:         plan.PlanID,
		Policy:         plan.Policy,
		IssueType:      issueType,
		DryRun:         plan.DryRun,
		Old:            ir.Keys(plan.Old),
		New:            ir.Keys(plan.New),
		MoveCount:      len(plan.Moves),
		EngineVersion:  ir.EngineVersion,
		JournalVersion: ir.JournalVersion,
	}
}
