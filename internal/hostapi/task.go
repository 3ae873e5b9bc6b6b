package hostapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wpgc/quiz-archiver/internal/logging"
	"github.com/wpgc/quiz-archiver/internal/resilience"
)

// TaskAdapter speaks the task-based wire variant: requests are addressed by
// a single opaque taskid rather than a course/cmid/quiz triple.
type TaskAdapter struct {
	*client
}

// NewTaskAdapter builds a TaskAdapter for one job's host endpoints.
func NewTaskAdapter(baseURL, webserviceURL, uploadURL, token string, skipTLSVerify bool, proxyURL string, breakers *resilience.Manager, logger *logging.ArchiverLogger) *TaskAdapter {
	return &TaskAdapter{client: newClient(baseURL, webserviceURL, uploadURL, token, skipTLSVerify, proxyURL, breakers, logger)}
}

func (a *TaskAdapter) CheckConnection(ctx context.Context) (bool, error) {
	return a.probe(ctx, "quiz_archiver_get_job_status")
}

func (a *TaskAdapter) UpdateJobStatus(ctx context.Context, job Job, status string, extras map[string]interface{}) (bool, error) {
	params := url.Values{
		"taskid": {strconv.FormatInt(job.TaskID, 10)},
		"status": {status},
	}
	for k, v := range extras {
		params.Set(k, fmt.Sprint(v))
	}

	var result struct {
		Status bool `json:"status"`
	}
	if err := a.call(ctx, "quiz_archiver_update_job_status", params, &result); err != nil {
		return false, err
	}
	return result.Status, nil
}

// attemptsMetadataBatchSize matches the spec's batching of attemptids into
// groups of 100 per get_attempts_metadata call.
const attemptsMetadataBatchSize = 100

func (a *TaskAdapter) GetAttemptsMetadata(ctx context.Context, job Job, attemptIDs []int64) ([]MetadataRow, error) {
	var all []MetadataRow

	for start := 0; start < len(attemptIDs); start += attemptsMetadataBatchSize {
		end := start + attemptsMetadataBatchSize
		if end > len(attemptIDs) {
			end = len(attemptIDs)
		}
		batch := attemptIDs[start:end]

		params := url.Values{"taskid": {strconv.FormatInt(job.TaskID, 10)}}
		for _, id := range batch {
			params.Add("attemptids[]", strconv.FormatInt(id, 10))
		}

		var rows []map[string]interface{}
		if err := a.call(ctx, "quiz_archiver_get_attempts_metadata", params, &rows); err != nil {
			return nil, err
		}
		all = append(all, toMetadataRows(rows)...)
	}

	return all, nil
}

func (a *TaskAdapter) GetAttemptData(ctx context.Context, job Job, attemptID int64) (string, string, string, []Attachment, error) {
	params := url.Values{
		"taskid":    {strconv.FormatInt(job.TaskID, 10)},
		"attemptid": {strconv.FormatInt(attemptID, 10)},
	}

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
	if err := a.call(ctx, "quiz_archiver_get_attempt_data", params, &resp); err != nil {
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

func (a *TaskAdapter) GetBackupStatus(ctx context.Context, job Job, backupID string) (BackupStatus, error) {
	params := url.Values{
		"taskid":   {strconv.FormatInt(job.TaskID, 10)},
		"backupid": {backupID},
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := a.call(ctx, "quiz_archiver_get_backup_status", params, &resp); err != nil {
		return "", err
	}

	switch resp.Status {
	case string(BackupPending), string(BackupSuccess), string(BackupFailed):
		return BackupStatus(resp.Status), nil
	default:
		return BackupFailed, logging.ErrHostProtocol("unrecognised backup status: "+resp.Status, nil)
	}
}

func (a *TaskAdapter) ProcessUploadedArtifact(ctx context.Context, job Job, handle UploadHandle, sha256Sum string) (bool, error) {
	return a.processUploadedArtifact(ctx, "quiz_archiver_process_uploaded_artifact", map[string]string{
		"taskid":    strconv.FormatInt(job.TaskID, 10),
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

func toMetadataRows(raw []map[string]interface{}) []MetadataRow {
	rows := make([]MetadataRow, 0, len(raw))

	var columns []string
	if len(raw) > 0 {
		for k := range raw[0] {
			columns = append(columns, k)
		}
	}

	for _, r := range raw {
		values := make(map[string]string, len(r))
		for k, v := range r {
			values[k] = fmt.Sprint(v)
		}
		rows = append(rows, MetadataRow{Columns: columns, Values: values})
	}
	return rows
}
