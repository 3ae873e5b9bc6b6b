package packaging

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"

	"github.com/wpgc/quiz-archiver/internal/bufpool"
)

// Archive bundles every regular file under root into a gzip-compressed tar
// file at destPath, with paths relative to root and no common root
// directory entry, per §4.6. The archive format is the stdlib's tar
// container wrapped in klauspost/pgzip for parallel compression throughput.
func Archive(root, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	gz := pgzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		buf := bufpool.Hash.Get()
		defer bufpool.Hash.Put(buf)
		_, err = io.CopyBuffer(tw, f, buf)
		return err
	})
	if err != nil {
		tw.Close()
		gz.Close()
		return fmt.Errorf("walking %s: %w", root, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}
	return nil
}
