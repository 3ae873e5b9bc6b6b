package hostapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wpgc/quiz-archiver/internal/logging"
	"github.com/wpgc/quiz-archiver/internal/resilience"
)

// LegacyAdapter speaks the pre-task wire variant: requests are addressed by
// the (courseid, cmid, quizid) triple instead of an opaque taskid.
type LegacyAdapter struct {
	*client
	CourseID, CmID, QuizID int64
}

// NewLegacyAdapter builds a LegacyAdapter for one job's host endpoints and
// target triple.
func NewLegacyAdapter(baseURL, webserviceURL, uploadURL, token string, courseID, cmID, quizID int64, skipTLSVerify bool, proxyURL string, breakers *resilience.Manager, logger *logging.ArchiverLogger) *LegacyAdapter {
	return &LegacyAdapter{
		client:   newClient(baseURL, webserviceURL, uploadURL, token, skipTLSVerify, proxyURL, breakers, logger),
		CourseID: courseID,
		CmID:     cmID,
		QuizID:   quizID,
	}
}

func (a *LegacyAdapter) triple() url.Values {
	return url.Values{
		"courseid": {strconv.FormatInt(a.CourseID, 10)},
		"cmid":      {strconv.FormatInt(a.CmID, 10)},
		"quizid":    {strconv.FormatInt(a.QuizID, 10)},
	}
}

func (a *LegacyAdapter) CheckConnection(ctx context.Context) (bool, error) {
	return a.probe(ctx, "quizaccess_archiver_get_job_status")
}

func (a *LegacyAdapter) UpdateJobStatus(ctx context.Context, job Job, status string, extras map[string]interface{}) (bool, error) {
	params := a.triple()
	params.Set("status", status)
	for k, v := range extras {
		params.Set(k, fmt.Sprint(v))
	}

	var result struct {
		Status bool `json:"status"`
	}
	if err := a.call(ctx, "quizaccess_archiver_update_job_status", params, &result); err != nil {
		return false, err
	}
	return result.Status, nil
}

func (a *LegacyAdapter) GetAttemptsMetadata(ctx context.Context, job Job, attemptIDs []int64) ([]MetadataRow, error) {
	var all []MetadataRow

	for start := 0; start < len(attemptIDs); start += attemptsMetadataBatchSize {
		end := start + attemptsMetadataBatchSize
		if end > len(attemptIDs) {
			end = len(attemptIDs)
		}
		batch := attemptIDs[start:end]

		params := a.triple()
		for _, id := range batch {
			params.Add("attemptids[]", strconv.FormatInt(id, 10))
		}

		var rows []map[string]interface{}
		if err := a.call(ctx, "quizaccess_archiver_get_attempts_metadata", params, &rows); err != nil {
			return nil, err
		}
		all = append(all, toMetadataRows(rows)...)
	}

	return all, nil
}

func (a *LegacyAdapter) GetAttemptData(ctx context.Context, job Job, attemptID int64) (string, string, string, []Attachment, error) {
	params := a.triple()
	params.Set("attemptid", strconv.FormatInt(attemptID, 10))

	var resp struct {
		FolderName  string `json:"folder_name"`
		FileStem    string `json:"file_stem"`
		HTMLBody    string `json:"html_body"`
		Attachments []struct {
			Slot        string `json:"slot"`
			Filename    string `json:"filename"`
			DownloadURL string `json:"download_url"`
			SHA1        string `json:"sha1"`
		} `json:"attachments"`
	}
	if err := a.call(ctx, "quizaccess_archiver_get_attempt_data", params, &resp); err != nil {
		return "", "", "", nil, err
	}

	attachments := make([]Attachment, 0, len(resp.Attachments))
	for _, at := range resp.Attachments {
		attachments = append(attachments, Attachment{
			Slot:         at.Slot,
			Filename:     at.Filename,
			DownloadURL:  at.DownloadURL,
			ExpectedSHA1: at.SHA1,
		})
	}

	return resp.FolderName, resp.FileStem, resp.HTMLBody, attachments, nil
}

func (a *LegacyAdapter) GetBackupStatus(ctx context.Context, job Job, backupID string) (BackupStatus, error) {
	params := a.triple()
	params.Set("backupid", backupID)

	var resp struct {
		Status string `json:"status"`
	}
	if err := a.call(ctx, "quizaccess_archiver_get_backup_status", params, &resp); err != nil {
		return "", err
	}

	switch resp.Status {
	case string(BackupPending), string(BackupSuccess), string(BackupFailed):
		return BackupStatus(resp.Status), nil
	default:
		return BackupFailed, logging.ErrHostProtocol("unrecognised backup status: "+resp.Status, nil)
	}
}

func (a *LegacyAdapter) ProcessUploadedArtifact(ctx context.Context, job Job, handle UploadHandle, sha256Sum string) (bool, error) {
	return a.processUploadedArtifact(ctx, "quizaccess_archiver_process_uploaded_artifact", map[string]string{
		"courseid":  strconv.FormatInt(a.CourseID, 10),
		"cmid":      strconv.FormatInt(a.CmID, 10),
		"quizid":    strconv.FormatInt(a.QuizID, 10),
		"component": handle.Component,
		"contextid": handle.ContextID,
		"userid":    handle.UserID,
		"filearea":  handle.FileArea,
		"filename":  handle.Filename,
		"filepath":  handle.FilePath,
		"itemid":    handle.ItemID,
		"sha256sum": sha256Sum,
	})
}
