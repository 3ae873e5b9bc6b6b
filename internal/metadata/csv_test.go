package metadata

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
)

func TestWriteCSVMergesPathColumn(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "attempts_metadata.csv")
	rows := []hostapi.MetadataRow{
		{Columns: []string{"attemptid", "userid"}, Values: map[string]string{"attemptid": "1", "userid": "7"}},
		{Columns: []string{"attemptid", "userid"}, Values: map[string]string{"attemptid": "2", "userid": "8"}},
	}
	paths := []string{"attempts/q1/q1.pdf", "attempts/q2/q2.pdf"}

	require.NoError(t, WriteCSV(dest, rows, paths))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"attemptid", "userid", "path"}, records[0])
	assert.Equal(t, []string{"1", "7", "attempts/q1/q1.pdf"}, records[1])
	assert.Equal(t, []string{"2", "8", "attempts/q2/q2.pdf"}, records[2])
}

func TestWriteCSVEmptyRows(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "attempts_metadata.csv")
	require.NoError(t, WriteCSV(dest, nil, nil))

	contents, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "path\n", string(contents))
}
