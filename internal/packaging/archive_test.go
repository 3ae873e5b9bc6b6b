package packaging

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveProducesRelativeNoCommonRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "attempts_metadata.csv"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "attempts", "q1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "attempts", "q1", "q1.pdf"), []byte("%PDF-fake"), 0o644))

	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, Archive(root, dest))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
		assert.False(t, filepath.IsAbs(hdr.Name))
	}

	assert.Contains(t, names, "attempts_metadata.csv")
	assert.Contains(t, names, "attempts/q1/q1.pdf")
}
