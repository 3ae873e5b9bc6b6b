// Package backup implements the per-backup poll-and-download sub-state
// machine from SPEC_FULL §4.4: PENDING -> SUCCESS (terminal good) or
// PENDING -> FAILED (terminal bad), plus the errgroup fan-out that runs
// every backup of a job concurrently.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

// OnWaiting is called the first time any backup in the fan-out is observed
// pending, so the engine can publish WAITING_FOR_BACKUP exactly once.
type OnWaiting func()

// Options bundles the tunables the poll loop and stream download need.
type Options struct {
	PollInterval        time.Duration
	MaxFilesizeBytes     int64
	WorkDir              string
}

// RunAll runs every backup concurrently under an errgroup: the first
// failure cancels its siblings and is returned as the fan-out's error.
func RunAll(ctx context.Context, adapter hostapi.Adapter, job hostapi.Job, backups []jobmodel.MoodleBackup, opts Options, onWaiting OnWaiting, logger *logging.ArchiverLogger) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, b := range backups {
		b := b
		g.Go(func() error {
			return runOne(gctx, adapter, job, b, opts, onWaiting, logger)
		})
	}

	return g.Wait()
}

// runOne polls a single backup to completion and, on SUCCESS, downloads it.
func runOne(ctx context.Context, adapter hostapi.Adapter, job hostapi.Job, b jobmodel.MoodleBackup, opts Options, onWaiting OnWaiting, logger *logging.ArchiverLogger) error {
	status := hostapi.BackupPending

	for status == hostapi.BackupPending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if onWaiting != nil {
			onWaiting()
		}

		next, err := adapter.GetBackupStatus(ctx, job, b.BackupID)
		if err != nil {
			return fmt.Errorf("polling backup %s: %w", b.BackupID, err)
		}

		switch next {
		case hostapi.BackupSuccess:
			status = next
		case hostapi.BackupFailed:
			return logging.NewError(logging.ErrCodeHostProtocol, "backup "+b.BackupID+" reported FAILED").
				WithContext("backupid", b.BackupID)
		case hostapi.BackupPending:
			if onWaiting != nil {
				onWaiting()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.PollInterval):
			}
		default:
			return logging.NewError(logging.ErrCodeHostProtocol, "backup "+b.BackupID+" reported unrecognised status "+string(next)).
				WithContext("backupid", b.BackupID).
				WithContext("status", string(next))
		}
	}

	return download(ctx, adapter, b, opts, logger)
}

// download verifies the backup's declared content type/length then
// stream-downloads it via the adapter, per §4.4.
func download(ctx context.Context, adapter hostapi.Adapter, b jobmodel.MoodleBackup, opts Options, logger *logging.ArchiverLogger) error {
	contentType, contentLength, err := adapter.GetRemoteFileMetadata(ctx, b.FileDownloadURL)
	if err != nil {
		return fmt.Errorf("probing backup %s metadata: %w", b.BackupID, err)
	}
	if contentType != "application/vnd.moodle.backup" {
		return logging.NewError(logging.ErrCodeIntegrity, "backup download has unexpected content type "+contentType).
			WithContext("backupid", b.BackupID)
	}
	if contentLength != nil && *contentLength > opts.MaxFilesizeBytes {
		return logging.NewError(logging.ErrCodeIntegrity, "backup exceeds configured maximum filesize").
			WithContext("backupid", b.BackupID).
			WithContext("content_length", *contentLength)
	}
	if contentLength == nil {
		logger.Warn("backup download has no content-length, proceeding without a pre-check", "backupid", b.BackupID)
	}

	dir := filepath.Join(opts.WorkDir, "backups")
	_, err = adapter.DownloadMoodleFile(ctx, b.FileDownloadURL, dir, b.Filename, nil, opts.MaxFilesizeBytes)
	if err != nil {
		return fmt.Errorf("downloading backup %s: %w", b.BackupID, err)
	}
	return nil
}
