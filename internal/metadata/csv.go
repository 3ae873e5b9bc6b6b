// Package metadata builds the attempts_metadata.csv artifact described in
// SPEC_FULL §4.5: the host's per-attempt metadata rows, merged with the
// archive-relative path of each rendered attempt.
package metadata

import (
	"encoding/csv"
	"os"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
)

// WriteCSV writes rows to destPath as a comma-delimited CSV with a header
// row first. The column set is the union taken from rows[0].Columns, with a
// "path" column appended holding paths[i] (the archive-relative path of the
// rendered attempt at the same index). encoding/csv quotes a field only when
// it needs it (it contains a comma, a double quote or a line break, or
// starts with a space); other non-numeric fields are written unquoted.
func WriteCSV(destPath string, rows []hostapi.MetadataRow, paths []string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(rows) == 0 {
		return w.Write([]string{"path"})
	}

	header := append(append([]string{}, rows[0].Columns...), "path")
	if err := w.Write(header); err != nil {
		return err
	}

	for i, row := range rows {
		record := make([]string, 0, len(header))
		for _, col := range rows[0].Columns {
			record = append(record, row.Values[col])
		}
		path := ""
		if i < len(paths) {
			path = paths[i]
		}
		record = append(record, path)
		if err := w.Write(record); err != nil {
			return err
		}
	}

	return w.Error()
}
