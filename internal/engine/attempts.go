package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/metadata"
	"github.com/wpgc/quiz-archiver/internal/monitoring"
	"github.com/wpgc/quiz-archiver/internal/render"
)

// runAttempts is Phase 2: render each attempt sequentially, reporting
// progress as it goes, then optionally build the metadata CSV.
func (e *Engine) runAttempts(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, log *slog.Logger) error {
	task := job.Descriptor.Attempts
	if task == nil {
		return nil
	}

	attemptIDs := render.DemoCapAttemptIDs(task.AttemptIDs, e.opts.AttemptOptions.DemoMode)

	browser, err := render.NewBrowser(job.Context(), e.opts.RenderOptions)
	if err != nil {
		return err
	}
	defer browser.Close()

	results := make([]render.Result, 0, len(attemptIDs))

	for i, attemptID := range attemptIDs {
		if job.Stopped() {
			return timeoutErr("attempts", "stop flag observed mid-attempt")
		}

		if e.opts.Resources != nil && i > 0 {
			e.backoffForPressure(job.Context(), log)
		}

		res, err := render.RenderAttempt(job.Context(), browser, adapter, hjob, attemptID, task, job.WorkDir(), e.opts.AttemptOptions)
		if err != nil {
			return err
		}
		results = append(results, res)
		job.RecordArchivedAttempt(attemptID, res.FolderName+"/"+res.FileStem)

		progress := (i + 1) * 100 / len(attemptIDs)
		job.SetProgress(progress)
		e.notify(job, adapter, hjob, jobmodel.StatusRunning)
		e.broadcast(job, jobmodel.StatusRunning)
	}

	if task.FetchMetadata {
		return e.writeMetadataCSV(job, adapter, hjob, results)
	}
	return nil
}

// writeMetadataCSV fetches per-attempt metadata rows and merges in the
// archive-relative path of each rendered attempt, per §4.5.
func (e *Engine) writeMetadataCSV(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, results []render.Result) error {
	ids := make([]int64, len(results))
	paths := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.AttemptID
		paths[i] = "attempts/" + r.FolderName + "/" + r.FileStem + ".pdf"
	}

	rows, err := adapter.GetAttemptsMetadata(job.Context(), hjob, ids)
	if err != nil {
		return err
	}

	return metadata.WriteCSV(job.WorkDir()+"/attempts_metadata.csv", rows, paths)
}

// backoffForPressure samples host resource pressure between attempts and
// sleeps a short backoff if the host is under load, mirroring the teacher's
// thermal-throttling posture.
func (e *Engine) backoffForPressure(ctx context.Context, log *slog.Logger) {
	snap, err := e.opts.Resources.Sample(ctx)
	if err != nil {
		return
	}
	if d := monitoring.BackoffFor(snap.Pressure); d > 0 {
		log.Warn("backing off before next attempt due to resource pressure", "pressure", snap.Pressure.String())
		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
	}
}
