package tabular

import (
	"bufio"
	"io"
	"os"
	"strings"

	isaerr "github.com/nishad/isakit/internal/errors"
)

// Quote returns cell ready to be written, quoting it only when it contains
// a tab, a line break or a quote, or would otherwise read back as a comment.
func Quote(cell string) string {
	if !strings.ContainsAny(cell, "\t\r\n\"") && !strings.HasPrefix(cell, "#") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// WriteRecords writes rows of cells, one line each.
func WriteRecords(w io.Writer, rows [][]string) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				if err := bw.WriteByte('\t'); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(Quote(cell)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write writes a table: the header row followed by the body rows.
func Write(w io.Writer, t *Table) error {
	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.Header)
	for _, r := range t.Rows {
		rows = append(rows, r.Cells)
	}
	return WriteRecords(w, rows)
}

// WriteFile writes a table to path. The file is closed on every exit path.
func WriteFile(path string, t *Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return isaerr.IO("tabular.WriteFile", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = isaerr.IO("tabular.WriteFile", path, cerr)
		}
	}()
	if err := Write(f, t); err != nil {
		return isaerr.IO("tabular.WriteFile", path, err)
	}
	return nil
}
