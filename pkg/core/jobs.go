package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Job defines a scheduled task.
type Job interface {
	Name() string
	ShouldFire(now time.Time) bool
	Run(ctx context.Context)
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// IsRunning reports whether the job is currently executing.
func (b *BaseJob) IsRunning() bool {
	return atomic.LoadInt32(&b.running) == 1
}

// TimeJob fires when time elapsed exceeds threshold.
type TimeJob struct {
	BaseJob
	mu        sync.Mutex
	lastTime  time.Time
	threshold time.Duration
	action    func(context.Context)
	firstRun  bool
}

func NewTimeJob(name string, threshold time.Duration, action func(context.Context)) *TimeJob {
	return &TimeJob{
		BaseJob:   NewBaseJob(name),
		threshold: threshold,
		action:    action,
		firstRun:  true,
	}
}

func (j *TimeJob) ShouldFire(now time.Time) bool {
	if j.IsRunning() {
		return false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.firstRun {
		return true
	}

	return now.Sub(j.lastTime) >= j.threshold
}

func (j *TimeJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.mu.Lock()
	j.lastTime = time.Now()
	j.firstRun = false
	j.mu.Unlock()

	j.action(ctx)
}

// LastRun returns when the job last started; zero if it never ran.
func (j *TimeJob) LastRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastTime
}
