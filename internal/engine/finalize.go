package engine

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/packaging"
)

// finalize is Phase 4: hash every file under the work directory, then
// archive it into a single tar.gz bundle, and return that archive's own
// checksum.
func (e *Engine) finalize(job *jobmodel.Job, log *slog.Logger) (archivePath, sha256Sum string, err error) {
	job.SetStatus(jobmodel.StatusFinalizing)

	if err := packaging.HashTree(job.Context(), job.WorkDir(), job.Stopped); err != nil {
		return "", "", err
	}

	archiveDir, err := os.MkdirTemp("", "quiz-archive-*")
	if err != nil {
		return "", "", err
	}
	archivePath = filepath.Join(archiveDir, job.Descriptor.ArchiveFilename+".tar.gz")

	if err := packaging.Archive(job.WorkDir(), archivePath); err != nil {
		return "", "", err
	}

	sum, err := packaging.SumFile(archivePath)
	if err != nil {
		return "", "", err
	}

	sidecar := archivePath + ".sha256"
	if err := os.WriteFile(sidecar, []byte(sum), 0o644); err != nil {
		return "", "", err
	}

	log.Info("archive finalized", "archive", archivePath, "sha256", sum)
	return archivePath, sum, nil
}
