// Package engine drives one job through the six phases of SPEC_FULL §4.2:
// Start, Attempts, Backups, Finalize, Upload, Terminate. It implements
// scheduler.Runner so the scheduler can treat job execution as an opaque
// call.
package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
	"github.com/wpgc/quiz-archiver/internal/monitoring"
	"github.com/wpgc/quiz-archiver/internal/packaging"
	"github.com/wpgc/quiz-archiver/internal/render"
	"github.com/wpgc/quiz-archiver/internal/wsstatus"
)

// Options bundles every ambient (non-descriptor) tunable the engine needs,
// sourced from config.Config.
type Options struct {
	StatusReportingInterval time.Duration
	BaseWorkDir             string

	BackupPollInterval     time.Duration
	BackupMaxFilesizeBytes int64

	RenderOptions  render.BrowserOptions
	AttemptOptions render.AttemptOptions

	Resources *monitoring.ResourceMonitor
	Metrics   *monitoring.Metrics
	Mirror    *packaging.Mirror
	StatusHub *wsstatus.Hub
}

// Engine drives one job at a time, handed to it by the scheduler.
type Engine struct {
	adapterFor func(d *jobmodel.Descriptor) (hostapi.Adapter, error)
	opts       Options
	logger     *logging.ArchiverLogger
}

// New builds an Engine. adapterFor resolves the right wire-variant adapter
// (task or legacy) for a job's descriptor. It is called once per Run; the
// adapter the httpapi layer used for the admission probe is not passed
// through, so the serve command's adapterFor builds a new adapter each time.
func New(adapterFor func(d *jobmodel.Descriptor) (hostapi.Adapter, error), opts Options, logger *logging.ArchiverLogger) *Engine {
	return &Engine{adapterFor: adapterFor, opts: opts, logger: logger}
}

// Run executes job to a terminal status. It never returns an error: every
// failure path sets the job's own terminal status directly, since the
// scheduler only inspects job.Status() after Run returns (or times out).
func (e *Engine) Run(job *jobmodel.Job) {
	log := e.logger.ForJob(job.ID)

	adapter, err := e.adapterFor(job.Descriptor)
	if err != nil {
		e.terminate(job, nil, hostapi.Job{}, logging.ErrInternal("failed to resolve host adapter", err), log)
		return
	}
	hjob := toHostapiJob(job.Descriptor.Target)

	if err := e.start(job, adapter, hjob, log); err != nil {
		e.terminate(job, adapter, hjob, err, log)
		return
	}

	if err := e.runPhases(job, adapter, hjob, log); err != nil {
		e.terminate(job, adapter, hjob, err, log)
		return
	}

	job.SetStatus(jobmodel.StatusFinished)
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordJobOutcome(string(jobmodel.StatusFinished))
	}
	e.broadcast(job, jobmodel.StatusFinished)
	os.RemoveAll(job.WorkDir())
	log.Info("job finished")
}

// runPhases runs Attempts, Backups, Finalize, and Upload in sequence,
// stopping at the first error. Working-directory cleanup on failure is the
// caller's (terminate's) responsibility.
func (e *Engine) runPhases(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, log *slog.Logger) error {
	if job.Stopped() {
		return logging.ErrTimeout("attempts", "stop flag observed before attempts phase")
	}
	if err := e.runAttempts(job, adapter, hjob, log); err != nil {
		return err
	}

	if job.Stopped() {
		return logging.ErrTimeout("backups", "stop flag observed before backups phase")
	}
	if err := e.runBackups(job, adapter, hjob, log); err != nil {
		return err
	}

	if job.Stopped() {
		return logging.ErrTimeout("finalize", "stop flag observed before finalize phase")
	}
	e.notify(job, adapter, hjob, jobmodel.StatusFinalizing)
	archivePath, sha256Sum, err := e.finalize(job, log)
	if err != nil {
		return err
	}
	defer os.RemoveAll(filepath.Dir(archivePath))

	if job.Stopped() {
		return logging.ErrTimeout("upload", "stop flag observed before upload phase")
	}
	return e.upload(job, adapter, hjob, archivePath, sha256Sum, log)
}

// start is Phase 1: transition to RUNNING, notify the host, create the
// working directory.
func (e *Engine) start(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, log *slog.Logger) error {
	if !job.SetStatus(jobmodel.StatusRunning) {
		return logging.ErrInternal("illegal transition to RUNNING", nil)
	}
	job.SetProgress(0)
	e.notify(job, adapter, hjob, jobmodel.StatusRunning)

	dir := filepath.Join(e.opts.BaseWorkDir, job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return logging.ErrInternal("failed to create working directory", err)
	}
	job.SetWorkDir(dir)
	log.Info("job started", "work_dir", dir)
	return nil
}

// terminate maps any error to FAILED, or to TIMEOUT if the stop flag was
// observed, notifies the host, records the outcome, and removes the working
// directory. The archive is always attempted to be removed as part of this
// scoped cleanup, per §4.2.
func (e *Engine) terminate(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, cause error, log *slog.Logger) {
	status := jobmodel.StatusFailed
	if job.Stopped() {
		status = jobmodel.StatusTimeout
	}
	job.SetStatus(status)

	if adapter != nil {
		e.notify(job, adapter, hjob, status)
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordJobOutcome(string(status))
	}
	e.broadcast(job, status)
	if cause != nil {
		if e.opts.StatusHub != nil {
			e.opts.StatusHub.BroadcastError(job.ID, cause.Error())
		}
	}
	if dir := job.WorkDir(); dir != "" {
		os.RemoveAll(dir)
	}

	log.Error("job terminated", "status", status, "error", cause)
}

// notify pushes a status update to the host, respecting the job's
// rate-limited notification policy for RUNNING updates; FINISHED is
// intentionally never notified, per §5. Terminal failures and the one-shot
// WAITING_FOR_BACKUP transition always notify regardless of rate limiting.
func (e *Engine) notify(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, status jobmodel.Status) {
	if status == jobmodel.StatusFinished {
		return
	}
	if status == jobmodel.StatusRunning && !job.ShouldNotify(e.opts.StatusReportingInterval, time.Now()) {
		return
	}
	if _, err := adapter.UpdateJobStatus(job.Context(), hjob, string(status), nil); err != nil {
		e.logger.ForJob(job.ID).Warn("status notification failed", "status", status, "error", err)
	}
}

// broadcast pushes the job's current status and progress to any connected
// websocket subscribers. A nil StatusHub (no HTTP surface wired up, as in
// unit tests) makes this a no-op.
func (e *Engine) broadcast(job *jobmodel.Job, status jobmodel.Status) {
	if e.opts.StatusHub == nil {
		return
	}
	e.opts.StatusHub.BroadcastStatus(job.ID, status, job.Progress())
}

func toHostapiJob(t jobmodel.TargetIdentity) hostapi.Job {
	return hostapi.Job{TaskID: t.TaskID, CourseID: t.CourseID, CmID: t.CmID, QuizID: t.QuizID}
}

// timeoutErr builds the Cancelled condition a phase raises when it observes
// the cooperative stop flag at one of its safe points, per §4.2/§5.
func timeoutErr(operation, message string) *logging.ArchiverError {
	return logging.NewError(logging.ErrCodeTimeout, message).WithOperation(operation)
}
