package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/store"
)

// InterruptedMessage is recorded on runs that were left RUNNING past their lease.
const InterruptedMessage = "update interrupted"

// Run repairs state left behind by a process that died mid-way.
// It blocks until completion.
func Run(ctx context.Context, s store.PageStatusStore, wiki string, leaseTimeout time.Duration) error {
	slog.Info("Starting database maintenance...", "wiki", wiki)

	if err := restoreChecking(ctx, s, wiki); err != nil {
		return err
	}
	if err := failStaleRuns(ctx, s, wiki, leaseTimeout); err != nil {
		return err
	}

	slog.Info("Database maintenance completed")
	return nil
}

// restoreChecking undoes the marks of a discovery pass that never finished.
func restoreChecking(ctx context.Context, s store.PageStatusStore, wiki string) error {
	n, err := s.ResetStatus(ctx, wiki, model.StatusChecking, model.StatusWaiting, time.Now())
	if err != nil {
		return fmt.Errorf("failed to restore checking records: %w", err)
	}
	if n > 0 {
		slog.Warn("Restored records left in CHECKING", "count", n)
	}
	return nil
}

// failStaleRuns marks RUNNING records older than the lease as FAILED.
func failStaleRuns(ctx context.Context, s store.PageStatusStore, wiki string, leaseTimeout time.Duration) error {
	running, err := s.ListByStatus(ctx, wiki, model.StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to list running records: %w", err)
	}

	now := time.Now()
	cutoff := now.Add(-leaseTimeout)
	for _, p := range running {
		if !p.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.SetStatus(ctx, p.ID, model.StatusFailed, InterruptedMessage, now); err != nil {
			return fmt.Errorf("failed to reset page %d: %w", p.ID, err)
		}
		slog.Warn("Marked stale run as failed", "page", p.Page, "started", p.Timestamp)
	}
	return nil
}
