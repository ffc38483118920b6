package batch

import (
	"context"
	"fmt"
	"log/slog"
)

// Submitter applies one batch atomically: it either commits every operation or none.
type Submitter interface {
	Submit(ctx context.Context, b *Batch) error
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, b *Batch) error

func (f SubmitterFunc) Submit(ctx context.Context, b *Batch) error {
	return f(ctx, b)
}

// Checkpoint durably records committed batches of a plan so an interrupted run can resume.
type Checkpoint interface {
	// LastCommitted returns the highest committed batch index for planID, or -1.
	LastCommitted(ctx context.Context, planID string) (int, error)
	// Commit records that batch b of planID has been committed.
	Commit(ctx context.Context, planID string, b *Batch) error
}

// Report summarizes a completed Execute call.
type Report struct {
	Submitted    int
	Skipped      int
	OpsCommitted int
}

type execOptions struct {
	checkpoint Checkpoint
	planID     string
	onCommit   func(b *Batch)
}

type ExecOption func(*execOptions)

// WithCheckpoint resumes after the last batch committed for planID and records each new commit.
func WithCheckpoint(cp Checkpoint, planID string) ExecOption {
	return func(o *execOptions) {
		o.checkpoint = cp
		o.planID = planID
	}
}

// WithCommitHook calls fn after every committed batch.
func WithCommitHook(fn func(b *Batch)) ExecOption {
	return func(o *execOptions) {
		o.onCommit = fn
	}
}

// Execute submits batches sequentially in index order. It stops at the first failure and
// returns a *SubmissionError; batches already committed are never rolled back and later
// batches are never attempted.
func Execute(ctx context.Context, batches []*Batch, sub Submitter, opts ...ExecOption) (*Report, error) {
	o := &execOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if err := Ordered(batches); err != nil {
		return nil, err
	}

	report := &Report{}
	start := 0

	if o.checkpoint != nil {
		last, err := o.checkpoint.LastCommitted(ctx, o.planID)
		if err != nil {
			return nil, fmt.Errorf("%w: read: %w", ErrCheckpoint, err)
		}
		start = min(last+1, len(batches))
		for _, b := range batches[:start] {
			report.Skipped++
			report.OpsCommitted += b.Len()
		}
		if start > 0 {
			slog.Info("batch resume", "plan", o.planID, "skipped", start, "ops", report.OpsCommitted)
		}
	}

	for _, b := range batches[start:] {
		if err := ctx.Err(); err != nil {
			return report, &SubmissionError{BatchIndex: b.Index, Committed: report.OpsCommitted, Err: err}
		}

		if err := sub.Submit(ctx, b); err != nil {
			slog.Error("batch submit", "index", b.Index, "kind", b.Kind, "ops", b.Len(), "error", err)
			return report, &SubmissionError{BatchIndex: b.Index, Committed: report.OpsCommitted, Err: err}
		}

		report.Submitted++
		report.OpsCommitted += b.Len()
		slog.Debug("batch committed", "index", b.Index, "kind", b.Kind, "ops", b.Len(), "budget", b.Budget)

		if o.checkpoint != nil {
			if err := o.checkpoint.Commit(ctx, o.planID, b); err != nil {
				// b is committed remotely; resume must start after it.
				return report, &SubmissionError{
					BatchIndex: b.Index + 1,
					Committed:  report.OpsCommitted,
					Err:        fmt.Errorf("%w: batch %d: %w", ErrCheckpoint, b.Index, err),
				}
			}
		}

		if o.onCommit != nil {
			o.onCommit(b)
		}
	}

	return report, nil
}
