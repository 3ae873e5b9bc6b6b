package packaging

import (
	"context"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wpgc/quiz-archiver/internal/logging"
)

// Mirror pushes a completed archive and a ".sha256" sidecar to an
// S3-compatible bucket, repurposing the teacher's minio-go upload client
// from "store the uploaded sermon" to "retain an audit copy of the outgoing
// archive" per §4.7. Construction is optional: a nil Mirror is a no-op, so
// callers don't need to branch on whether ARCHIVE_MIRROR_* was configured.
type Mirror struct {
	client *minio.Client
	bucket string
	logger *logging.ArchiverLogger
}

// NewMirror builds a Mirror against endpoint/bucket. Returns an error only
// if the underlying client cannot be constructed; callers should log and
// proceed without a mirror rather than fail the job.
func NewMirror(endpoint, accessKey, secretKey, bucket string, secure bool, logger *logging.ArchiverLogger) (*Mirror, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	return &Mirror{client: client, bucket: bucket, logger: logger.ForMirror(bucket)}, nil
}

// Push uploads archivePath and its ".sha256" sidecar under objectPrefix.
// Failure is logged and swallowed: the audit mirror is best-effort and must
// never fail the job, per §4.7.
func (m *Mirror) Push(ctx context.Context, objectPrefix, archivePath string) {
	if m == nil {
		return
	}

	if _, err := m.client.FPutObject(ctx, m.bucket, objectPrefix, archivePath, minio.PutObjectOptions{
		ContentType: "application/gzip",
	}); err != nil {
		m.logger.Warn("audit mirror upload failed", "error", err, "object", objectPrefix)
		return
	}

	sidecar := archivePath + ".sha256"
	if _, err := os.Stat(sidecar); err == nil {
		if _, err := m.client.FPutObject(ctx, m.bucket, objectPrefix+".sha256", sidecar, minio.PutObjectOptions{
			ContentType: "text/plain",
		}); err != nil {
			m.logger.Warn("audit mirror sidecar upload failed", "error", err, "object", objectPrefix+".sha256")
		}
	}
}

// ObjectName derives a bucket object name for a job's archive: jobid/filename.
func ObjectName(jobID, archivePath string) string {
	base := archivePath
	if idx := strings.LastIndexByte(archivePath, '/'); idx >= 0 {
		base = archivePath[idx+1:]
	}
	return jobID + "/" + base
}
