package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

type fakeAdapter struct {
	statuses     []string
	uploadCalled bool
	processOK    bool
}

func (f *fakeAdapter) CheckConnection(ctx context.Context) (bool, error) { return true, nil }

func (f *fakeAdapter) UpdateJobStatus(ctx context.Context, job hostapi.Job, status string, extras map[string]interface{}) (bool, error) {
	f.statuses = append(f.statuses, status)
	return true, nil
}

func (f *fakeAdapter) GetAttemptsMetadata(ctx context.Context, job hostapi.Job, attemptIDs []int64) ([]hostapi.MetadataRow, error) {
	return nil, nil
}

func (f *fakeAdapter) GetAttemptData(ctx context.Context, job hostapi.Job, attemptID int64) (string, string, string, []hostapi.Attachment, error) {
	return "", "", "", nil, nil
}

func (f *fakeAdapter) GetBackupStatus(ctx context.Context, job hostapi.Job, backupID string) (hostapi.BackupStatus, error) {
	return hostapi.BackupSuccess, nil
}

func (f *fakeAdapter) GetRemoteFileMetadata(ctx context.Context, url string) (string, *int64, error) {
	return "application/vnd.moodle.backup", nil, nil
}

func (f *fakeAdapter) DownloadMoodleFile(ctx context.Context, url, dir, filename string, expectedSHA1 *string, maxBytes int64) (int64, error) {
	return 0, nil
}

func (f *fakeAdapter) UploadFile(ctx context.Context, path string) (hostapi.UploadHandle, error) {
	f.uploadCalled = true
	return hostapi.UploadHandle{Component: "mod_quiz", Filename: "archive.tar.gz"}, nil
}

func (f *fakeAdapter) ProcessUploadedArtifact(ctx context.Context, job hostapi.Job, handle hostapi.UploadHandle, sha256Sum string) (bool, error) {
	return f.processOK, nil
}

func (f *fakeAdapter) BaseURL() string { return "https://lms.example.test" }

func testLogger(t *testing.T) *logging.ArchiverLogger {
	t.Helper()
	cfg := logging.DefaultConfig()
	cfg.Output = discard{}
	l, err := logging.New("quiz-archiver-test", cfg)
	require.NoError(t, err)
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestRunWithNoAttemptsOrBackupsFinishes(t *testing.T) {
	adapter := &fakeAdapter{processOK: true}
	e := New(func(d *jobmodel.Descriptor) (hostapi.Adapter, error) { return adapter, nil },
		Options{
			StatusReportingInterval: time.Millisecond,
			BaseWorkDir:             t.TempDir(),
		}, testLogger(t))

	d := &jobmodel.Descriptor{
		Target:            jobmodel.TargetIdentity{TaskID: 1},
		ArchiveFilename:   "archive",
		HostBaseURL:       "https://lms.example.test",
		HostWebserviceURL: "https://lms.example.test/webservice/rest/server.php",
		HostToken:         "tok",
	}
	job := jobmodel.NewJob("job-1", d, context.Background())
	job.SetStatus(jobmodel.StatusAwaitingProcessing)

	e.Run(job)

	assert.Equal(t, jobmodel.StatusFinished, job.Status())
	assert.True(t, adapter.uploadCalled)

	_, err := os.Stat(job.WorkDir())
	assert.True(t, os.IsNotExist(err), "working directory should be removed after a finished job")
}

func TestRunFailsWhenProcessingCallbackRejects(t *testing.T) {
	adapter := &fakeAdapter{processOK: false}
	e := New(func(d *jobmodel.Descriptor) (hostapi.Adapter, error) { return adapter, nil },
		Options{
			StatusReportingInterval: time.Millisecond,
			BaseWorkDir:             t.TempDir(),
		}, testLogger(t))

	d := &jobmodel.Descriptor{
		Target:            jobmodel.TargetIdentity{TaskID: 1},
		ArchiveFilename:   "archive",
		HostBaseURL:       "https://lms.example.test",
		HostWebserviceURL: "https://lms.example.test/webservice/rest/server.php",
		HostToken:         "tok",
	}
	job := jobmodel.NewJob("job-2", d, context.Background())
	job.SetStatus(jobmodel.StatusAwaitingProcessing)

	e.Run(job)

	assert.Equal(t, jobmodel.StatusFailed, job.Status())
}
