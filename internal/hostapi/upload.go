package hostapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/wpgc/quiz-archiver/internal/logging"
)

// GetRemoteFileMetadata issues a HEAD request for url and reports its
// content type and, if present, content length. Used by the backup
// pipeline to validate a backup's content type before downloading it.
func (c *client) GetRemoteFileMetadata(ctx context.Context, targetURL string) (string, *int64, error) {
	if err := c.rateLimiter.WaitAPI(ctx); err != nil {
		return "", nil, logging.ErrTimeout("remote_file_metadata", "rate_limit_wait").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		return "", nil, logging.ErrInternal("failed to build HEAD request", err)
	}
	req.Header.Set("Authorization", "token="+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, logging.ErrHostUnreachable("HEAD request failed", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.ContentLength >= 0 {
		length := resp.ContentLength
		return contentType, &length, nil
	}
	return contentType, nil, nil
}

// DownloadMoodleFile streams url to dir/filename and, if expectedSHA1 is
// set, verifies it against the written content. See client.downloadFile
// for the size-cap and rate-limit behaviour; the SHA-1 check lives here
// because only attachment downloads carry an expected digest.
func (c *client) DownloadMoodleFile(ctx context.Context, url, dir, filename string, expectedSHA1 *string, maxBytes int64) (int64, error) {
	path, err := c.downloadFile(ctx, url, dir, filename, maxBytes)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, logging.ErrInternal("failed to stat downloaded file", err).WithFile(filename)
	}

	if expectedSHA1 != nil && *expectedSHA1 != "" {
		if err := verifySHA1(path, *expectedSHA1); err != nil {
			os.Remove(path)
			return 0, err
		}
	}

	return info.Size(), nil
}

// UploadFile posts path to the host's multi-part upload endpoint and
// extracts the seven-field handle from the first element of the response
// array.
func (c *client) UploadFile(ctx context.Context, path string) (UploadHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadHandle{}, logging.ErrInternal("failed to open archive for upload", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return UploadHandle{}, logging.ErrInternal("failed to build upload form", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return UploadHandle{}, logging.ErrInternal("failed to stream archive into upload form", err)
	}
	if err := writer.WriteField("token", c.token); err != nil {
		return UploadHandle{}, logging.ErrInternal("failed to add token field", err)
	}
	if err := writer.Close(); err != nil {
		return UploadHandle{}, logging.ErrInternal("failed to finalize upload form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return UploadHandle{}, logging.ErrInternal("failed to build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var handle UploadHandle
	err = c.breaker.Call(ctx, func(ctx context.Context) error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return logging.ErrHostUnreachable("upload request failed", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return logging.ErrHostUnreachable("failed to read upload response", err)
		}
		respBody = stripHTMLWrapper(respBody)

		var entries []struct {
			Component string `json:"component"`
			ContextID int64  `json:"contextid"`
			UserID    int64  `json:"userid"`
			FileArea  string `json:"filearea"`
			Filename  string `json:"filename"`
			FilePath  string `json:"filepath"`
			ItemID    int64  `json:"itemid"`
		}
		if err := json.Unmarshal(respBody, &entries); err != nil || len(entries) == 0 {
			return logging.ErrHostProtocol("upload response did not contain a file handle", err)
		}

		var rawEntries []map[string]json.RawMessage
		if err := json.Unmarshal(respBody, &rawEntries); err != nil || len(rawEntries) == 0 {
			return logging.ErrHostProtocol("upload response did not contain a file handle", err)
		}
		for _, key := range []string{"component", "contextid", "userid", "filearea", "filename", "filepath", "itemid"} {
			if _, ok := rawEntries[0][key]; !ok {
				return logging.ErrHostProtocol("upload response handle missing field "+key, nil)
			}
		}

		e := entries[0]
		if e.Component == "" || e.Filename == "" {
			return logging.ErrHostProtocol("upload response handle missing required fields", nil)
		}

		handle = UploadHandle{
			Component: e.Component,
			ContextID: fmt.Sprint(e.ContextID),
			UserID:    fmt.Sprint(e.UserID),
			FileArea:  e.FileArea,
			Filename:  e.Filename,
			FilePath:  e.FilePath,
			ItemID:    fmt.Sprint(e.ItemID),
		}
		return nil
	})
	if err != nil {
		return UploadHandle{}, err
	}
	return handle, nil
}

// processUploadedArtifact invokes the processing callback function, common
// to both wire variants, with the job identity, upload handle, and archive
// checksum. A response status other than "OK" is fatal.
func (c *client) processUploadedArtifact(ctx context.Context, function string, params map[string]string) (bool, error) {
	var result struct {
		Status string `json:"status"`
	}
	q := formValues(params)
	if err := c.call(ctx, function, q, &result); err != nil {
		return false, err
	}
	if result.Status != "OK" {
		return false, logging.ErrHostProtocol("processing callback returned status "+result.Status, nil)
	}
	return true, nil
}
