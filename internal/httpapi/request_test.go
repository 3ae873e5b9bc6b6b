package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgc/quiz-archiver/internal/jobmodel"
)

func TestTaskRequestToDescriptor(t *testing.T) {
	req := TaskRequest{
		APIVersion: 1,
		TaskID:     42,
	}
	req.MoodleAPI = moodleAPIFields{
		BaseURL:       "https://lms.example.test",
		WebserviceURL: "https://lms.example.test/webservice/rest/server.php",
		UploadURL:     "https://lms.example.test/webservice/upload.php",
		WSToken:       "tok",
	}
	req.Job.ArchiveFilename = "quiz-42-archive"
	req.Job.AttemptIDs = []int64{1, 2, 3}
	req.Job.PaperFormat = "A4"

	d, err := req.ToDescriptor()
	require.NoError(t, err)
	assert.Equal(t, int64(42), d.Target.TaskID)
	assert.Equal(t, []int64{1, 2, 3}, d.Attempts.AttemptIDs)
	assert.Equal(t, jobmodel.PaperA4, d.Attempts.PaperFormat)
}

func TestTaskRequestRejectsWrongAPIVersion(t *testing.T) {
	req := TaskRequest{APIVersion: 99}
	_, err := req.ToDescriptor()
	assert.Error(t, err)
}

func TestTaskRequestWithBackupsOnlyIsValid(t *testing.T) {
	req := TaskRequest{APIVersion: 1, TaskID: 7}
	req.MoodleAPI = moodleAPIFields{
		BaseURL:       "https://lms.example.test",
		WebserviceURL: "https://lms.example.test/webservice/rest/server.php",
		UploadURL:     "https://lms.example.test/webservice/upload.php",
		WSToken:       "tok",
	}
	req.Job.ArchiveFilename = "archive"
	req.Job.MoodleBackups = []backupWire{
		{BackupID: "b1", Filename: "backup.mbz", FileDownloadURL: "https://lms.example.test/backup/download.php?id=b1"},
	}

	d, err := req.ToDescriptor()
	require.NoError(t, err)
	assert.Nil(t, d.Attempts)
	assert.Len(t, d.Backups, 1)
}

func TestLegacyRequestToDescriptor(t *testing.T) {
	req := LegacyRequest{
		APIVersion:          1,
		MoodleBaseURL:       "https://lms.example.test",
		MoodleWebserviceURL: "https://lms.example.test/webservice/rest/server.php",
		MoodleUploadURL:     "https://lms.example.test/webservice/upload.php",
		WSToken:             "tok",
		CourseID:            1,
		CmID:                2,
		QuizID:              3,
		ArchiveFilename:     "legacy-archive",
	}
	req.TaskArchiveQuizAttempts = &struct {
		AttemptIDs        []int64            `json:"attemptids"`
		ReportSections    map[string]bool    `json:"report_sections"`
		FetchMetadata     bool               `json:"fetch_metadata"`
		FetchAttachments  bool               `json:"fetch_attachments"`
		PaperFormat       string             `json:"paper_format"`
		KeepHTMLFiles     bool               `json:"keep_html_files"`
		FoldernamePattern string             `json:"foldername_pattern"`
		FilenamePattern   string             `json:"filename_pattern"`
		ImageOptimize     *imageOptimizeWire `json:"image_optimize"`
	}{
		AttemptIDs:  []int64{10},
		PaperFormat: "A4",
	}

	d, err := req.ToDescriptor()
	require.NoError(t, err)
	assert.True(t, d.Target.Valid())
	assert.Equal(t, int64(2), d.Target.CmID)
	assert.Equal(t, []int64{10}, d.Attempts.AttemptIDs)
}

func TestLegacyRequestRejectsWrongAPIVersion(t *testing.T) {
	req := LegacyRequest{APIVersion: 2}
	_, err := req.ToDescriptor()
	assert.Error(t, err)
}
