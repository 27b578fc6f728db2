// Package tabular reads and writes the tab-separated files of an ISA-Tab
// bundle. Fields may be double-quoted to carry tabs, newlines and quotes;
// a doubled quote inside a quoted field is a literal quote. Input is UTF-8
// unless a byte order mark says otherwise. Lines starting with '#' are
// comments.
package tabular

import (
	"bytes"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	isaerr "github.com/nishad/isakit/internal/errors"
)

// Record is one logical line of a file. Line is the 1-based physical line
// the record starts on; a quoted field may carry the record over several
// lines.
type Record struct {
	Line  int
	Cells []string
}

// Row is one body row of a study or assay table, padded to header width.
type Row struct {
	Line  int
	Cells []string
}

// Empty reports whether every cell of the row is blank.
func (r Row) Empty() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Table is a parsed study or assay file.
type Table struct {
	Path   string
	Header []string
	Rows   []Row
}

// Decode converts raw file bytes to UTF-8, honouring a byte order mark.
func Decode(data []byte) ([]byte, error) {
	r := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	return io.ReadAll(r)
}

// ReadFile opens path read-only, reads it in full, closes it and parses it
// as a table.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, isaerr.IO("tabular.ReadFile", path, err)
	}
	return Parse(data, path)
}

// Parse parses table bytes. path is used for error coordinates only.
func Parse(data []byte, path string) (*Table, error) {
	const op isaerr.Op = "tabular.Parse"

	records, err := Records(data, path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, isaerr.E(op, isaerr.KindRaggedRow, isaerr.Pos{Path: path, Row: 1}, "missing header row")
	}

	header := trimTrailingEmpty(records[0].Cells)
	t := &Table{Path: path, Header: header, Rows: make([]Row, 0, len(records)-1)}
	width := len(header)

	for _, rec := range records[1:] {
		cells := rec.Cells
		if len(cells) > width {
			for i := width; i < len(cells); i++ {
				if strings.TrimSpace(cells[i]) != "" {
					return nil, isaerr.Errorf(op, isaerr.KindRaggedRow,
						isaerr.Pos{Path: path, Row: rec.Line, Col: i + 1},
						"row has %d cells, header has %d", len(trimTrailingEmpty(cells)), width)
				}
			}
			cells = cells[:width]
		}
		for len(cells) < width {
			cells = append(cells, "")
		}
		t.Rows = append(t.Rows, Row{Line: rec.Line, Cells: cells})
	}
	return t, nil
}

// Records splits decoded file content into records of cells. Comment and
// blank lines produce no record but still count as lines.
func Records(data []byte, path string) ([]Record, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, isaerr.IO("tabular.Records", path, err)
	}

	var (
		records []Record
		cells   []string
		field   strings.Builder
		line    = 1    // physical line of the current byte
		recLine = 1    // physical line the current record started on
		start   = true // at the start of a record
		quoted  bool
		inQuote bool
	)

	flushField := func() {
		cells = append(cells, field.String())
		field.Reset()
		quoted = false
	}
	flushRecord := func() {
		flushField()
		records = append(records, Record{Line: recLine, Cells: cells})
		cells = nil
		start = true
	}

	s := string(text)
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inQuote {
			if c == '"' {
				if i+1 < len(s) && s[i+1] == '"' {
					field.WriteByte('"')
					i++
					continue
				}
				inQuote = false
				continue
			}
			if c == '\n' {
				line++
			}
			field.WriteByte(c)
			continue
		}

		if start && c == '#' {
			// comment line
			for i < len(s) && s[i] != '\n' {
				i++
			}
			line++
			continue
		}
		if start && (c == '\n' || (c == '\r' && i+1 < len(s) && s[i+1] == '\n')) {
			if c == '\r' {
				i++
			}
			// blank line
			line++
			continue
		}
		if start {
			start = false
			recLine = line
		}

		switch c {
		case '"':
			if field.Len() == 0 && !quoted {
				inQuote = true
				quoted = true
				continue
			}
			field.WriteByte(c)
		case '\t':
			flushField()
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				continue
			}
			field.WriteByte(c)
		case '\n':
			flushRecord()
			line++
		default:
			field.WriteByte(c)
		}
	}

	if inQuote {
		return nil, isaerr.E(isaerr.Op("tabular.Records"), isaerr.KindRaggedRow,
			isaerr.Pos{Path: path, Row: recLine}, "unterminated quoted field")
	}
	if !start {
		flushRecord()
	}
	return dropBlank(records), nil
}

// dropBlank removes records that hold a single empty cell.
func dropBlank(records []Record) []Record {
	out := records[:0]
	for _, r := range records {
		if len(r.Cells) == 1 && r.Cells[0] == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}

// TrimTrailingEmpty returns cells without trailing blank cells.
func TrimTrailingEmpty(cells []string) []string {
	return trimTrailingEmpty(cells)
}
