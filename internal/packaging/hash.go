// Package packaging implements the Finalize phase of the job engine: SHA-256
// sidecar hashing, tar+gzip archiving, and an optional best-effort audit
// mirror upload, per SPEC_FULL §4.6 and §4.7.
package packaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/sha256-simd"

	"github.com/wpgc/quiz-archiver/internal/bufpool"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

// StopChecker reports whether the owning job's cooperative stop flag has
// been raised. The hashing walk checks it once per file, per §4.6.
type StopChecker func() bool

// HashTree walks root recursively and, for every regular file, writes a
// sibling "<file>.sha256" file containing the lower-case hex digest of its
// SHA-256 sum, computed via minio/sha256-simd in bufpool.HashChunkSize
// chunks. Already-present ".sha256" files are skipped so a re-run never
// hashes its own sidecars.
func HashTree(ctx context.Context, root string, stopped StopChecker) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".sha256" {
			return nil
		}
		if stopped != nil && stopped() {
			return logging.NewError(logging.ErrCodeTimeout, "hashing cancelled").WithOperation("hash_tree")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sum, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", path, err)
		}
		sidecar := path + ".sha256"
		if err := os.WriteFile(sidecar, []byte(sum), 0o644); err != nil {
			return fmt.Errorf("writing sidecar for %s: %w", path, err)
		}
		return nil
	})
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := bufpool.Hash.Get()
	defer bufpool.Hash.Put(buf)

	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// SumFile returns the lower-case hex SHA-256 digest of path without writing
// a sidecar, used for the final archive's own checksum.
func SumFile(path string) (string, error) {
	return hashFile(path)
}
