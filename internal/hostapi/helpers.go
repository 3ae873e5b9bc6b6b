package hostapi

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/wpgc/quiz-archiver/internal/logging"
)

// attachmentHashChunkSize matches the hashing chunk size used elsewhere in
// the packaging stage, keeping I/O behaviour consistent across the module.
const attachmentHashChunkSize = 4096

// verifySHA1 hashes the file at path and compares it against expected
// (case-insensitive hex), returning an integrity error on mismatch.
func verifySHA1(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return logging.ErrInternal("failed to open file for SHA-1 verification", err)
	}
	defer f.Close()

	h := sha1.New()
	buf := make([]byte, attachmentHashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return logging.ErrInternal("failed to hash file for SHA-1 verification", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return logging.ErrIntegrity(path, "SHA-1 mismatch: expected "+expected+" got "+actual)
	}
	return nil
}

// formValues converts a flat string map into url.Values for a web-service call.
func formValues(params map[string]string) url.Values {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return q
}
