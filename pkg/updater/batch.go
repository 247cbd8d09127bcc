package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smalyshev/TabulistBot/pkg/model"
)

// BatchResult summarizes an UpdateAll run.
type BatchResult struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Changed   int           `json:"changed"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Progress is called after each page of a batch finishes.
type Progress func(done, total int, res *Result)

// UpdateAll runs the pipeline for every WAITING, OK or FAILED record of the
// wiki, in id order, on update.workers workers. A failing page never stops the
// batch; pages held by another run are skipped. Cancelling ctx stops handing
// out new pages.
func (u *Updater) UpdateAll(ctx context.Context, progress Progress) (*BatchResult, error) {
	recs, err := u.store.ListByStatus(ctx, u.cfg.Wiki.Name, model.StatusWaiting, model.StatusOK, model.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	runID := uuid.NewString()
	log := u.logger.With("run_id", runID)
	start := time.Now()
	res := &BatchResult{RunID: runID, Total: len(recs)}
	log.Info("Batch update started", "pages", len(recs))

	workers := u.cfg.Update.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int64)
	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				r, err := u.UpdatePage(ctx, id)

				mu.Lock()
				done++
				switch {
				case errors.Is(err, ErrPageBusy), errors.Is(err, ErrPageNotFound) && r == nil:
					res.Skipped++
				case r == nil || r.Status == model.StatusFailed:
					res.Failed++
				case r.Changed:
					res.Changed++
				default:
					res.Unchanged++
				}
				n := done
				mu.Unlock()

				if progress != nil {
					progress(n, len(recs), r)
				}
			}
		}()
	}

feed:
	for _, rec := range recs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- rec.ID:
		}
	}
	close(jobs)
	wg.Wait()

	res.Duration = time.Since(start)
	log.Info("Batch update finished",
		"changed", res.Changed,
		"unchanged", res.Unchanged,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration", res.Duration.Round(time.Millisecond))
	return res, ctx.Err()
}
