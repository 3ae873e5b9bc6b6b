package engine

import (
	"log/slog"

	"github.com/wpgc/quiz-archiver/internal/backup"
	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/render"
)

// runBackups is Phase 3: poll and download every configured backup
// concurrently. The first WAITING_FOR_BACKUP notification is one-shot.
func (e *Engine) runBackups(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, log *slog.Logger) error {
	if len(job.Descriptor.Backups) == 0 {
		return nil
	}

	if e.opts.AttemptOptions.DemoMode {
		return e.runDemoBackups(job)
	}

	opts := backup.Options{
		PollInterval:       e.opts.BackupPollInterval,
		MaxFilesizeBytes:   e.opts.BackupMaxFilesizeBytes,
		WorkDir:            job.WorkDir(),
	}

	onWaiting := func() {
		if job.EnterWaitingForBackup() {
			job.SetStatus(jobmodel.StatusWaitingForBackup)
			e.notify(job, adapter, hjob, jobmodel.StatusWaitingForBackup)
			job.SetStatus(jobmodel.StatusRunning)
		}
	}

	return backup.RunAll(job.Context(), adapter, hjob, job.Descriptor.Backups, opts, onWaiting, e.logger)
}

// runDemoBackups replaces every backup with a placeholder file instead of a
// real poll-and-download, per the demo-mode constraint.
func (e *Engine) runDemoBackups(job *jobmodel.Job) error {
	dir := job.WorkDir() + "/backups"
	for _, b := range job.Descriptor.Backups {
		if err := render.DemoBackupPlaceholder(dir, b.Filename); err != nil {
			return err
		}
	}
	return nil
}
