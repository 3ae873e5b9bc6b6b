package jobmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidArchiveFilename(t *testing.T) {
	assert.True(t, ValidArchiveFilename("quiz-41-export"))
	assert.False(t, ValidArchiveFilename(""))
	assert.False(t, ValidArchiveFilename("a/b"))
	assert.False(t, ValidArchiveFilename("a.tar"))
	assert.False(t, ValidArchiveFilename("a:b"))
	assert.False(t, ValidArchiveFilename("a\x01b"))
}

func TestValidFolderAndFileName(t *testing.T) {
	assert.True(t, ValidFolderName("attempt_1"))
	assert.False(t, ValidFolderName("/attempt_1"))
	assert.False(t, ValidFolderName("attempt_1/"))
	assert.False(t, ValidFolderName("attempt*1"))

	assert.True(t, ValidFileName("report.pdf"))
	assert.False(t, ValidFileName("sub/report.pdf"))
	assert.False(t, ValidFileName("bad;name"))
}

func TestTargetIdentityValid(t *testing.T) {
	assert.True(t, TargetIdentity{TaskID: 5}.Valid())
	assert.True(t, TargetIdentity{CourseID: 1, CmID: 2, QuizID: 3}.Valid())
	assert.False(t, TargetIdentity{}.Valid())
	assert.False(t, TargetIdentity{TaskID: 5, CourseID: 1, CmID: 2, QuizID: 3}.Valid())
	assert.False(t, TargetIdentity{CourseID: 1}.Valid())
}

func TestImageOptimizeValid(t *testing.T) {
	var nilOpt *ImageOptimize
	assert.True(t, nilOpt.Valid())

	assert.True(t, (&ImageOptimize{Width: 800, Height: 600, Quality: 80}).Valid())
	assert.False(t, (&ImageOptimize{Width: 0, Height: 600, Quality: 80}).Valid())
	assert.False(t, (&ImageOptimize{Width: 800, Height: 600, Quality: 101}).Valid())
}

func TestQuizAttemptsTaskValidate(t *testing.T) {
	task := &QuizAttemptsTask{
		AttemptIDs:  []int64{1, 2, 3},
		PaperFormat: PaperA4,
	}
	assert.NoError(t, task.Validate())

	task.AttemptIDs = nil
	assert.Error(t, task.Validate())

	task.AttemptIDs = []int64{1}
	task.PaperFormat = "A9"
	assert.Error(t, task.Validate())
}

func TestMoodleBackupValidate(t *testing.T) {
	base := "https://lms.example.test"
	b := MoodleBackup{
		BackupID:        "abc123",
		Filename:        "backup.mbz",
		FileDownloadURL: base + "/backup/download.php?id=abc123",
	}
	assert.NoError(t, b.Validate(base))

	b.FileDownloadURL = "https://evil.test/backup.mbz"
	assert.Error(t, b.Validate(base))
}

func TestDescriptorValidate(t *testing.T) {
	base := "https://lms.example.test"
	d := &Descriptor{
		Target:            TargetIdentity{TaskID: 42},
		ArchiveFilename:   "quiz-42-archive",
		Attempts:          &QuizAttemptsTask{AttemptIDs: []int64{1}, PaperFormat: PaperA4},
		HostBaseURL:       base,
		HostWebserviceURL: base + "/webservice/rest/server.php",
		HostUploadURL:     base + "/webservice/upload.php",
		HostToken:         "token-123",
	}
	assert.NoError(t, d.Validate())

	missing := *d
	missing.HostToken = ""
	assert.Error(t, missing.Validate())

	noTasks := *d
	noTasks.Attempts = nil
	noTasks.Backups = nil
	assert.Error(t, noTasks.Validate())
}
