package jobmodel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Job is the mutable runtime state bound to one Descriptor: its identity,
// current status, progress, working directory, and cooperative-cancellation
// plumbing. The Descriptor itself is never mutated; Job is.
type Job struct {
	ID         string
	Descriptor *Descriptor

	mu               sync.RWMutex
	status           Status
	progress         int
	lastNotifiedAt   time.Time
	notifiedWaiting  bool
	workDir          string
	archivedAttempts map[int64]string

	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewJob creates a job in status UNINITIALIZED, bound to ctx for
// cooperative cancellation. The caller (the scheduler) owns cancel.
func NewJob(id string, descriptor *Descriptor, parent context.Context) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		ID:               id,
		Descriptor:       descriptor,
		status:           StatusUninitialized,
		archivedAttempts: make(map[int64]string),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Context returns the job's cancellation context. Every long-running call
// the engine makes on behalf of this job should pass this context through.
func (j *Job) Context() context.Context {
	return j.ctx
}

// Stop raises the cooperative stop flag and cancels the job's context. Safe
// to call more than once.
func (j *Job) Stop() {
	j.stopped.Store(true)
	j.cancel()
}

// Stopped reports whether a stop has been requested, either by the
// scheduler's timeout supervisor or by process shutdown.
func (j *Job) Stopped() bool {
	return j.stopped.Load()
}

// SetStatus transitions the job to a new status, enforcing the lifecycle
// DAG. Returns false without changing anything if the transition is
// illegal — callers treat that as a programming error, not a retryable
// condition.
func (j *Job) SetStatus(status Status) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !ValidTransition(j.status, status) {
		return false
	}
	j.status = status
	return true
}

// Status returns the job's current status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// SetProgress records the job's completion percentage (0-100).
func (j *Job) SetProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = progress
}

// Progress returns the job's last recorded completion percentage.
func (j *Job) Progress() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// ShouldNotify reports whether at least interval has elapsed since the last
// host status notification, and if so marks now as the new notification
// time. This implements the status-reporter rate limiting design note: a
// last-notification timestamp compared against wall clock.
func (j *Job) ShouldNotify(interval time.Duration, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if now.Sub(j.lastNotifiedAt) < interval {
		return false
	}
	j.lastNotifiedAt = now
	return true
}

// EnterWaitingForBackup returns true only the first time it's called for
// this job, implementing the idempotent one-shot transition-notification
// rule for WAITING_FOR_BACKUP.
func (j *Job) EnterWaitingForBackup() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.notifiedWaiting {
		return false
	}
	j.notifiedWaiting = true
	return true
}

// SetWorkDir binds the job's working directory, created on execution start.
func (j *Job) SetWorkDir(dir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.workDir = dir
}

// WorkDir returns the job's working directory.
func (j *Job) WorkDir() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.workDir
}

// RecordArchivedAttempt records the artifact stem produced for attemptid.
func (j *Job) RecordArchivedAttempt(attemptID int64, stem string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.archivedAttempts[attemptID] = stem
}

// ArchivedAttempts returns a snapshot of attemptid -> artifact stem.
func (j *Job) ArchivedAttempts() map[int64]string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make(map[int64]string, len(j.archivedAttempts))
	for k, v := range j.archivedAttempts {
		out[k] = v
	}
	return out
}
