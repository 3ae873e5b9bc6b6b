// Package hostapi implements the versioned client the job engine uses to
// talk to the learning-management host: status notifications, metadata and
// attempt-data fetches, backup polling, file download, upload, and the
// processing callback.
package hostapi

import "context"

// BackupStatus is the state of one asynchronously produced host backup.
type BackupStatus string

const (
	BackupPending BackupStatus = "PENDING"
	BackupSuccess BackupStatus = "SUCCESS"
	BackupFailed  BackupStatus = "FAILED"
)

// Attachment describes one attempt attachment the host has made available
// for download, with the SHA-1 it claims for integrity verification.
type Attachment struct {
	Slot         string
	Filename     string
	DownloadURL  string
	ExpectedSHA1 string
}

// MetadataRow is one row of the attempts-metadata CSV, keyed by column name.
// Column order is preserved via Columns so the CSV writer can emit a stable
// header even though the host returns an unordered JSON object per row.
type MetadataRow struct {
	Columns []string
	Values  map[string]string
}

// UploadHandle carries the seven opaque fields the host returns after an
// archive upload, used verbatim in the processing callback.
type UploadHandle struct {
	Component string
	ContextID string
	UserID    string
	FileArea  string
	Filename  string
	FilePath  string
	ItemID    string
}

// Job is the minimal view of a job the adapter needs: its identity and
// target. Kept separate from jobmodel.Job to avoid an import cycle (the
// adapter is constructed before a Job exists, during admission probing).
type Job struct {
	TaskID   int64
	CourseID int64
	CmID     int64
	QuizID   int64
}

// Adapter is the shape the job engine consumes, implemented once per wire
// variant (legacy, task-based) behind the same interface so the engine
// never branches on which variant produced a given Descriptor.
type Adapter interface {
	// CheckConnection probes the host with a deliberately incomplete call;
	// a successful probe is defined as the host returning "invalidparameter".
	CheckConnection(ctx context.Context) (bool, error)

	UpdateJobStatus(ctx context.Context, job Job, status string, extras map[string]interface{}) (bool, error)

	GetAttemptsMetadata(ctx context.Context, job Job, attemptIDs []int64) ([]MetadataRow, error)

	GetAttemptData(ctx context.Context, job Job, attemptID int64) (folderName, fileStem, htmlBody string, attachments []Attachment, err error)

	GetBackupStatus(ctx context.Context, job Job, backupID string) (BackupStatus, error)

	GetRemoteFileMetadata(ctx context.Context, url string) (contentType string, contentLength *int64, err error)

	DownloadMoodleFile(ctx context.Context, url, dir, filename string, expectedSHA1 *string, maxBytes int64) (bytesWritten int64, err error)

	UploadFile(ctx context.Context, path string) (UploadHandle, error)

	ProcessUploadedArtifact(ctx context.Context, job Job, handle UploadHandle, sha256Sum string) (bool, error)

	// BaseURL returns the host base URL this adapter targets; the circuit
	// breaker is keyed by it, while each adapter has its own rate limiter.
	BaseURL() string
}
