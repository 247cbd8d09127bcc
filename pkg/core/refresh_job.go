package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smalyshev/TabulistBot/pkg/updater"
)

// PageRefresher syncs the status table with the wiki.
type PageRefresher interface {
	RefreshPageList(ctx context.Context) (*updater.DiscoveryResult, error)
}

// BatchUpdater updates every tracked page.
type BatchUpdater interface {
	UpdateAll(ctx context.Context, progress updater.Progress) (*updater.BatchResult, error)
}

// Repairer fixes records left behind by an interrupted process.
type Repairer func(ctx context.Context) error

// RefreshReport describes the last refresh cycle.
type RefreshReport struct {
	Started   time.Time                `json:"started"`
	Finished  time.Time                `json:"finished"`
	Discovery *updater.DiscoveryResult `json:"discovery,omitempty"`
	Batch     *updater.BatchResult     `json:"batch,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// RefreshJob repairs stale records, rediscovers the pages using the template
// and then updates all of them, every interval.
type RefreshJob struct {
	*TimeJob
	repair    Repairer
	discovery PageRefresher
	updater   BatchUpdater

	mu   sync.RWMutex
	last *RefreshReport
}

// NewRefreshJob creates the periodic refresh. repair may be nil.
func NewRefreshJob(interval time.Duration, repair Repairer, d PageRefresher, u BatchUpdater) *RefreshJob {
	j := &RefreshJob{repair: repair, discovery: d, updater: u}
	j.TimeJob = NewTimeJob("Refresh", interval, j.refresh)
	return j
}

// Last returns a copy of the last finished cycle, or nil.
func (j *RefreshJob) Last() *RefreshReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return nil
	}
	r := *j.last
	return &r
}

func (j *RefreshJob) refresh(ctx context.Context) {
	report := &RefreshReport{Started: time.Now()}
	defer func() {
		report.Finished = time.Now()
		j.mu.Lock()
		j.last = report
		j.mu.Unlock()
	}()

	if j.repair != nil {
		if err := j.repair(ctx); err != nil {
			slog.Warn("RefreshJob: repair failed", "error", err)
		}
	}

	found, err := j.discovery.RefreshPageList(ctx)
	if err != nil {
		// keep updating the pages already known
		slog.Error("RefreshJob: discovery failed", "error", err)
		report.Error = err.Error()
	}
	report.Discovery = found

	batch, err := j.updater.UpdateAll(ctx, nil)
	if err != nil {
		slog.Error("RefreshJob: batch update failed", "error", err)
		report.Error = err.Error()
	}
	report.Batch = batch
}
