package jobmodel

import (
	"strings"

	"github.com/wpgc/quiz-archiver/internal/logging"
)

// PaperFormat enumerates the page sizes the render pipeline accepts.
type PaperFormat string

const (
	PaperA0      PaperFormat = "A0"
	PaperA1      PaperFormat = "A1"
	PaperA2      PaperFormat = "A2"
	PaperA3      PaperFormat = "A3"
	PaperA4      PaperFormat = "A4"
	PaperA5      PaperFormat = "A5"
	PaperA6      PaperFormat = "A6"
	PaperLetter  PaperFormat = "Letter"
	PaperLegal   PaperFormat = "Legal"
	PaperTabloid PaperFormat = "Tabloid"
	PaperLedger  PaperFormat = "Ledger"
)

var validPaperFormats = map[PaperFormat]bool{
	PaperA0: true, PaperA1: true, PaperA2: true, PaperA3: true,
	PaperA4: true, PaperA5: true, PaperA6: true,
	PaperLetter: true, PaperLegal: true, PaperTabloid: true, PaperLedger: true,
}

// folderForbidden and fileForbidden implement the two forbidden-character
// sets from the data model: folder names forbid a narrower set, file names
// additionally forbid the path separator.
const folderForbidden = "\\.:;*?!\"<>|\x00"

var fileForbidden = folderForbidden + "/"

// ValidFolderName reports whether name is free of forbidden characters and
// doesn't start or end with '/'.
func ValidFolderName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	return !strings.ContainsAny(name, folderForbidden)
}

// ValidFileName reports whether name is free of forbidden characters.
func ValidFileName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, fileForbidden)
}

// archiveFilenameForbidden is the literal forbidden set named for the
// top-level archive filename in the data model. It differs from the
// folder/file sets above: it includes '/' and '.' (an archive filename
// carries no extension of its own; the packaging stage appends one) but
// omits ';' and '!'.
const archiveFilenameForbidden = `\/:*?"<>|.`

// ValidArchiveFilename reports whether name is a legal bare archive filename:
// non-empty, free of the literal forbidden set, and free of control
// characters.
func ValidArchiveFilename(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, archiveFilenameForbidden) {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// ImageOptimize describes optional raster downscaling applied during PDF
// post-processing.
type ImageOptimize struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Quality int `json:"quality"`
}

// Valid reports whether the optimize parameters are within range.
func (o *ImageOptimize) Valid() bool {
	if o == nil {
		return true
	}
	return o.Width >= 1 && o.Height >= 1 && o.Quality >= 0 && o.Quality <= 100
}

// QuizAttemptsTask describes the optional attempt-rendering portion of a job.
type QuizAttemptsTask struct {
	AttemptIDs         []int64
	Sections           map[string]bool
	FetchMetadata      bool
	FetchAttachments   bool
	PaperFormat        PaperFormat
	KeepHTMLFiles      bool
	FoldernamePattern  string
	FilenamePattern    string
	ImageOptimize      *ImageOptimize
}

// Validate checks the attempt task against the data-model invariants.
func (t *QuizAttemptsTask) Validate() error {
	if t == nil {
		return nil
	}
	if len(t.AttemptIDs) == 0 {
		return logging.ErrValidationField("attemptids", "must be non-empty when quiz_attempts is present")
	}
	if !validPaperFormats[t.PaperFormat] {
		return logging.ErrValidationField("paper_format", "unrecognised paper format "+string(t.PaperFormat))
	}
	if !t.ImageOptimize.Valid() {
		return logging.ErrValidationField("image_optimize", "width/height must be >=1 and quality in [0,100]")
	}
	return nil
}

// MoodleBackup describes one course/activity backup the job must wait for
// and download.
type MoodleBackup struct {
	BackupID        string
	Filename        string
	FileDownloadURL string
}

// Validate checks a single backup entry against base for the URL-prefix
// invariant in §6 (the download URL must be prefixed by the host base URL).
func (b *MoodleBackup) Validate(hostBaseURL string) error {
	if b.BackupID == "" {
		return logging.ErrValidationField("backupid", "must not be empty")
	}
	if !ValidFileName(b.Filename) {
		return logging.ErrValidationField("filename", "contains forbidden characters: "+b.Filename)
	}
	if !strings.HasPrefix(b.FileDownloadURL, hostBaseURL) {
		return logging.ErrValidationField("file_download_url", "must be prefixed by the host base URL")
	}
	return nil
}

// TargetIdentity is the mutually-exclusive identity a job is scoped to:
// either a single task id, or a course/cmid/quiz triple.
type TargetIdentity struct {
	TaskID   int64
	CourseID int64
	CmID     int64
	QuizID   int64
}

// Valid reports whether exactly one of the two identity shapes is set.
func (t TargetIdentity) Valid() bool {
	byTask := t.TaskID > 0
	byTriple := t.CourseID > 0 && t.CmID > 0 && t.QuizID > 0
	return byTask != byTriple // exactly one, not both, not neither
}

// Descriptor is the validated, immutable description of one archive
// request. It is constructed once during admission and never mutated
// afterward; the engine reads it, it never writes to it.
type Descriptor struct {
	Target          TargetIdentity
	ArchiveFilename string
	Attempts        *QuizAttemptsTask
	Backups         []MoodleBackup

	HostBaseURL       string
	HostWebserviceURL string
	HostUploadURL     string
	HostToken         string
}

// Validate runs every descriptor-level invariant from the data model. It is
// called exactly once, during admission, before a Job is constructed.
func (d *Descriptor) Validate() error {
	if !d.Target.Valid() {
		return logging.ErrValidationField("target", "exactly one of taskid or (courseid, cmid, quizid) must be set")
	}
	if !ValidArchiveFilename(d.ArchiveFilename) {
		return logging.ErrValidationField("archive_filename", "must be non-empty and free of path separators and control characters")
	}
	if d.Attempts == nil && len(d.Backups) == 0 {
		return logging.ErrValidationField("job", "must include quiz_attempts, moodle_backups, or both")
	}
	if err := d.Attempts.Validate(); err != nil {
		return err
	}
	for i := range d.Backups {
		if err := d.Backups[i].Validate(d.HostBaseURL); err != nil {
			return err
		}
	}
	if d.HostBaseURL == "" || d.HostWebserviceURL == "" || d.HostUploadURL == "" || d.HostToken == "" {
		return logging.ErrValidationField("moodle_api", "base_url, webservice_url, upload_url, and wstoken are all required")
	}
	return nil
}
