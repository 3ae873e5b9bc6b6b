package httpapi

import (
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

// apiVersion is the only wire envelope version this worker accepts.
const apiVersion = 1

// moodleAPIFields carries the host connection details shared by both wire
// variants.
type moodleAPIFields struct {
	BaseURL       string `json:"base_url"`
	WebserviceURL string `json:"webservice_url"`
	UploadURL     string `json:"upload_url"`
	WSToken       string `json:"wstoken"`
}

type imageOptimizeWire struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Quality int `json:"quality"`
}

type backupWire struct {
	BackupID        string `json:"backupid"`
	Filename        string `json:"filename"`
	FileDownloadURL string `json:"file_download_url"`
}

// TaskRequest is the task-based wire variant from §6: a job addressed by a
// single opaque taskid, with attempt parameters nested under "job".
type TaskRequest struct {
	APIVersion int             `json:"api_version"`
	MoodleAPI  moodleAPIFields `json:"moodle_api"`
	TaskID     int64           `json:"taskid"`
	Job        struct {
		ArchiveFilename    string            `json:"archive_filename"`
		AttemptIDs         []int64           `json:"attemptids"`
		ReportSections     map[string]bool   `json:"report_sections"`
		FetchMetadata      bool              `json:"fetch_metadata"`
		FetchAttachments   bool              `json:"fetch_attachments"`
		PaperFormat        string            `json:"paper_format"`
		KeepHTMLFiles      bool              `json:"keep_html_files"`
		FoldernamePattern  string            `json:"foldername_pattern"`
		FilenamePattern    string            `json:"filename_pattern"`
		ImageOptimize      *imageOptimizeWire `json:"image_optimize"`
		MoodleBackups      []backupWire      `json:"moodle_backups"`
	} `json:"job"`
}

// ToDescriptor validates the envelope version and converts the wire request
// into the internal, adapter-agnostic Job Descriptor.
func (r *TaskRequest) ToDescriptor() (*jobmodel.Descriptor, error) {
	if r.APIVersion != apiVersion {
		return nil, logging.ErrValidationField("api_version",
			"unsupported api_version, worker expects 1")
	}

	d := &jobmodel.Descriptor{
		Target:            jobmodel.TargetIdentity{TaskID: r.TaskID},
		ArchiveFilename:   r.Job.ArchiveFilename,
		HostBaseURL:       r.MoodleAPI.BaseURL,
		HostWebserviceURL: r.MoodleAPI.WebserviceURL,
		HostUploadURL:     r.MoodleAPI.UploadURL,
		HostToken:         r.MoodleAPI.WSToken,
	}

	if len(r.Job.AttemptIDs) > 0 {
		d.Attempts = &jobmodel.QuizAttemptsTask{
			AttemptIDs:        r.Job.AttemptIDs,
			Sections:          r.Job.ReportSections,
			FetchMetadata:     r.Job.FetchMetadata,
			FetchAttachments:  r.Job.FetchAttachments,
			PaperFormat:       jobmodel.PaperFormat(r.Job.PaperFormat),
			KeepHTMLFiles:     r.Job.KeepHTMLFiles,
			FoldernamePattern: r.Job.FoldernamePattern,
			FilenamePattern:   r.Job.FilenamePattern,
			ImageOptimize:     toImageOptimize(r.Job.ImageOptimize),
		}
	}
	d.Backups = toBackups(r.Job.MoodleBackups)

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LegacyRequest is the pre-task wire variant: flat top-level moodle_* fields
// and a courseid/cmid/quizid triple instead of taskid.
type LegacyRequest struct {
	APIVersion int    `json:"api_version"`
	MoodleBaseURL       string `json:"moodle_base_url"`
	MoodleWebserviceURL string `json:"moodle_webservice_url"`
	MoodleUploadURL     string `json:"moodle_upload_url"`
	WSToken             string `json:"wstoken"`

	CourseID int64 `json:"courseid"`
	CmID     int64 `json:"cmid"`
	QuizID   int64 `json:"quizid"`

	ArchiveFilename string `json:"archive_filename"`

	TaskArchiveQuizAttempts *struct {
		AttemptIDs        []int64            `json:"attemptids"`
		ReportSections    map[string]bool    `json:"report_sections"`
		FetchMetadata     bool               `json:"fetch_metadata"`
		FetchAttachments  bool               `json:"fetch_attachments"`
		PaperFormat       string             `json:"paper_format"`
		KeepHTMLFiles     bool               `json:"keep_html_files"`
		FoldernamePattern string             `json:"foldername_pattern"`
		FilenamePattern   string             `json:"filename_pattern"`
		ImageOptimize     *imageOptimizeWire `json:"image_optimize"`
	} `json:"task_archive_quiz_attempts"`

	TaskMoodleBackups *struct {
		Backups []backupWire `json:"backups"`
	} `json:"task_moodle_backups"`
}

// ToDescriptor converts the legacy wire request into a Job Descriptor.
func (r *LegacyRequest) ToDescriptor() (*jobmodel.Descriptor, error) {
	if r.APIVersion != apiVersion {
		return nil, logging.ErrValidationField("api_version",
			"unsupported api_version, worker expects 1")
	}

	d := &jobmodel.Descriptor{
		Target:            jobmodel.TargetIdentity{CourseID: r.CourseID, CmID: r.CmID, QuizID: r.QuizID},
		ArchiveFilename:   r.ArchiveFilename,
		HostBaseURL:       r.MoodleBaseURL,
		HostWebserviceURL: r.MoodleWebserviceURL,
		HostUploadURL:     r.MoodleUploadURL,
		HostToken:         r.WSToken,
	}

	if t := r.TaskArchiveQuizAttempts; t != nil && len(t.AttemptIDs) > 0 {
		d.Attempts = &jobmodel.QuizAttemptsTask{
			AttemptIDs:        t.AttemptIDs,
			Sections:          t.ReportSections,
			FetchMetadata:     t.FetchMetadata,
			FetchAttachments:  t.FetchAttachments,
			PaperFormat:       jobmodel.PaperFormat(t.PaperFormat),
			KeepHTMLFiles:     t.KeepHTMLFiles,
			FoldernamePattern: t.FoldernamePattern,
			FilenamePattern:   t.FilenamePattern,
			ImageOptimize:     toImageOptimize(t.ImageOptimize),
		}
	}
	if b := r.TaskMoodleBackups; b != nil {
		d.Backups = toBackups(b.Backups)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func toImageOptimize(w *imageOptimizeWire) *jobmodel.ImageOptimize {
	if w == nil {
		return nil
	}
	return &jobmodel.ImageOptimize{Width: w.Width, Height: w.Height, Quality: w.Quality}
}

func toBackups(wire []backupWire) []jobmodel.MoodleBackup {
	if len(wire) == 0 {
		return nil
	}
	out := make([]jobmodel.MoodleBackup, len(wire))
	for i, b := range wire {
		out[i] = jobmodel.MoodleBackup{
			BackupID:        b.BackupID,
			Filename:        b.Filename,
			FileDownloadURL: b.FileDownloadURL,
		}
	}
	return out
}
