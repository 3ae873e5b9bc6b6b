// Package scheduler implements the bounded admission queue and the single
// supervisor goroutine that drains it, per SPEC_FULL §4.1. It is the
// process-wide coordination point between HTTP handlers (many producers) and
// the job engine (one consumer).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

// WorkerStatus is the observable state derived from queue depth, per P6.
type WorkerStatus string

const (
	WorkerIdle   WorkerStatus = "IDLE"
	WorkerActive WorkerStatus = "ACTIVE"
	WorkerBusy   WorkerStatus = "BUSY"
)

// Runner executes one job's full pipeline to a terminal status. The engine
// package supplies the concrete implementation; the scheduler only needs
// this much to drive admission, timeout, and history bookkeeping.
type Runner interface {
	Run(job *jobmodel.Job)
}

// entry is either a real job or the shutdown sentinel.
type entry struct {
	job      *jobmodel.Job
	sentinel bool
}

// Scheduler owns the bounded FIFO queue, the job history ring, and the
// single supervisor goroutine that drains the queue sequentially. Rationale
// for single concurrent job: the render pipeline drives a full browser and
// is resource-heavy, so FIFO fairness beats concurrent execution of unknown
// size.
type Scheduler struct {
	capacity       int
	queue          chan entry
	requestTimeout time.Duration
	runner         Runner
	history        *jobmodel.History
	logger         *logging.ArchiverLogger

	mu     sync.RWMutex
	byID   map[string]*jobmodel.Job
	done   chan struct{}
	stopOn sync.Once
}

// New creates a scheduler with the given queue capacity and per-job
// execution deadline. historySize bounds the job history ring.
func New(capacity int, requestTimeout time.Duration, historySize int, runner Runner, logger *logging.ArchiverLogger) *Scheduler {
	return &Scheduler{
		capacity:       capacity,
		queue:          make(chan entry, capacity),
		requestTimeout: requestTimeout,
		runner:         runner,
		history:        jobmodel.NewHistory(historySize),
		logger:         logger,
		byID:           make(map[string]*jobmodel.Job),
		done:           make(chan struct{}),
	}
}

// Start launches the supervisor goroutine. Call once per scheduler.
func (s *Scheduler) Start() {
	go s.supervise()
}

// Admit enqueues job for execution. Admission is non-blocking: if the queue
// is full, it returns ErrQueueFull immediately rather than waiting.
func (s *Scheduler) Admit(job *jobmodel.Job) error {
	select {
	case s.queue <- entry{job: job}:
		s.mu.Lock()
		s.byID[job.ID] = job
		s.mu.Unlock()
		s.history.Add(job.ID, jobmodel.StatusAwaitingProcessing)
		return nil
	default:
		return logging.ErrQueueFull(s.capacity)
	}
}

// Shutdown pushes the sentinel control message so the supervisor drains
// cleanly and returns, then waits for it to exit or ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stopOn.Do(func() {
		s.queue <- entry{sentinel: true}
	})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueLen returns the number of jobs currently queued (not counting any in
// flight in the supervisor).
func (s *Scheduler) QueueLen() int {
	return len(s.queue)
}

// Status derives the worker status from queue depth per P6.
func (s *Scheduler) Status() WorkerStatus {
	n := s.QueueLen()
	switch {
	case n == 0:
		return WorkerIdle
	case n >= s.capacity:
		return WorkerBusy
	default:
		return WorkerActive
	}
}

// History returns the job history entry for id, if known.
func (s *Scheduler) History(id string) (jobmodel.HistoryEntry, bool) {
	return s.history.Get(id)
}

// supervise is the single consumer: it drains the queue sequentially,
// running each job to completion (or timeout) before dequeuing the next.
func (s *Scheduler) supervise() {
	defer close(s.done)

	for e := range s.queue {
		if e.sentinel {
			return
		}
		s.runOne(e.job)
	}
}

// runOne starts job in a cancellable goroutine and waits up to the request
// timeout. If the goroutine finishes first, its terminal status stands. If
// the deadline elapses, runOne raises the cooperative stop flag and waits
// for the goroutine to unwind, then records TIMEOUT.
func (s *Scheduler) runOne(job *jobmodel.Job) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		s.runner.Run(job)
	}()

	timer := time.NewTimer(s.requestTimeout)
	defer timer.Stop()

	select {
	case <-finished:
		s.history.Add(job.ID, job.Status())
	case <-timer.C:
		job.Stop()
		<-finished
		job.SetStatus(jobmodel.StatusTimeout)
		s.history.Add(job.ID, jobmodel.StatusTimeout)
		s.logger.ForJob(job.ID).Warn("job exceeded request timeout, stop flag raised",
			"timeout", s.requestTimeout)
	}
}
