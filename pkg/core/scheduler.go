package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTick is how often the scheduler evaluates its jobs.
const DefaultTick = time.Second

// Scheduler evaluates registered jobs on a ticker and starts the ones due.
type Scheduler struct {
	tick time.Duration
	jobs []Job
	wg   sync.WaitGroup
}

// NewScheduler creates a new Scheduler. A non-positive tick uses DefaultTick.
func NewScheduler(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{tick: tick}
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs the main loop. It blocks until context is cancelled and the
// running jobs have returned.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	slog.Info("Scheduler started", "tick", s.tick, "jobs", len(s.jobs))

	// first evaluation without waiting a full tick
	s.evaluate(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			slog.Info("Scheduler stopped")
			return
		case now := <-ticker.C:
			s.evaluate(ctx, now)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		if job.ShouldFire(now) {
			slog.Debug("Job firing", "job", job.Name())
			s.wg.Add(1)
			go func(j Job) {
				defer s.wg.Done()
				j.Run(ctx)
			}(job)
		}
	}
}
