package engine

import (
	"log/slog"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
	"github.com/wpgc/quiz-archiver/internal/packaging"
)

// upload is Phase 5: upload the archive, invoke the processing callback,
// and push a best-effort audit mirror copy on success.
func (e *Engine) upload(job *jobmodel.Job, adapter hostapi.Adapter, hjob hostapi.Job, archivePath, sha256Sum string, log *slog.Logger) error {
	handle, err := adapter.UploadFile(job.Context(), archivePath)
	if err != nil {
		return err
	}

	ok, err := adapter.ProcessUploadedArtifact(job.Context(), hjob, handle, sha256Sum)
	if err != nil {
		return err
	}
	if !ok {
		return logging.ErrHostProtocol("processing callback did not confirm upload", nil)
	}

	if e.opts.Mirror != nil {
		e.opts.Mirror.Push(job.Context(), packaging.ObjectName(job.ID, archivePath), archivePath)
	}

	log.Info("archive uploaded", "handle_filename", handle.Filename)
	return nil
}
