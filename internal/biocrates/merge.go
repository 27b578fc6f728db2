// Package biocrates merges the per-plate XML exports of the Biocrates
// MetIDQ software into a single document.
package biocrates

import (
	"bytes"
	"encoding/xml"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-multierror"

	isaerr "github.com/nishad/isakit/internal/errors"
)

// Namespace is the default namespace of a Biocrates result document.
const Namespace = "http://www.biocrates.com/metstat/result/xml_1.0"

// Elements lists the collected element names in output order.
var Elements = []string{"metabolite", "plate", "project", "sample", "contact"}

// Merged holds the distinct fragments collected from a set of exports.
type Merged struct {
	// RootAttrs are the attributes of the first input's root element,
	// namespace declarations excluded.
	RootAttrs []xml.Attr
	Fragments map[string][][]byte
	seen      map[string]bool
}

// Count returns the number of distinct fragments of one element name.
func (m *Merged) Count(name string) int { return len(m.Fragments[name]) }

func newMerged() *Merged {
	return &Merged{Fragments: make(map[string][][]byte), seen: make(map[string]bool)}
}

// Add scans one export. Fragments identical byte for byte to one already
// collected are dropped.
func (m *Merged) Add(data []byte, path string) error {
	const op isaerr.Op = "biocrates.Add"
	d := xml.NewDecoder(bytes.NewReader(data))
	root := true
	for {
		start := d.InputOffset()
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return isaerr.E(op, isaerr.KindMalformedDocument, isaerr.Pos{Path: path}, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root {
			root = false
			if m.RootAttrs == nil {
				m.RootAttrs = rootAttrs(se.Attr)
			}
			continue
		}
		if !slices.Contains(Elements, se.Name.Local) {
			continue
		}
		if err := d.Skip(); err != nil {
			return isaerr.E(op, isaerr.KindMalformedDocument, isaerr.Pos{Path: path}, err)
		}
		frag := bytes.TrimSpace(data[start:d.InputOffset()])
		key := se.Name.Local + "\x00" + string(frag)
		if m.seen[key] {
			continue
		}
		m.seen[key] = true
		m.Fragments[se.Name.Local] = append(m.Fragments[se.Name.Local], slices.Clone(frag))
	}
	if root {
		return isaerr.Errorf(op, isaerr.KindMalformedDocument, isaerr.Pos{Path: path}, "no root element")
	}
	return nil
}

func rootAttrs(attrs []xml.Attr) []xml.Attr {
	out := []xml.Attr{}
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// WriteTo writes the merged document.
func (m *Merged) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<data xmlns="` + Namespace + `"`)
	for _, a := range m.RootAttrs {
		b.WriteByte(' ')
		if a.Name.Space != "" {
			b.WriteString(a.Name.Space)
			b.WriteByte(':')
		}
		b.WriteString(a.Name.Local)
		b.WriteString(`="`)
		if err := xml.EscapeText(&b, []byte(a.Value)); err != nil {
			return 0, err
		}
		b.WriteByte('"')
	}
	b.WriteString(">\n")
	for _, name := range Elements {
		for _, frag := range m.Fragments[name] {
			b.Write(frag)
			b.WriteByte('\n')
		}
	}
	b.WriteString("</data>\n")
	return b.WriteTo(w)
}

// Options configures MergeDir.
type Options struct {
	Logger *slog.Logger
}

// MergeDir collects every *.xml file of dir in name order. Every unreadable
// or malformed file is reported; nothing is returned unless all succeed.
func MergeDir(dir string, opts Options) (*Merged, error) {
	const op isaerr.Op = "biocrates.MergeDir"
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	names, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, isaerr.IO(op, dir, err)
	}
	if len(names) == 0 {
		return nil, isaerr.Errorf(op, isaerr.KindIO, isaerr.Pos{Path: dir}, "no xml files found")
	}
	slices.Sort(names)

	m := newMerged()
	var errs *multierror.Error
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			errs = multierror.Append(errs, isaerr.IO(op, name, err))
			continue
		}
		if err := m.Add(data, name); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		logger.Debug("scanned biocrates export", "file", filepath.Base(name))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	for _, name := range Elements {
		logger.Info("merged elements", "element", name, "count", m.Count(name))
	}
	return m, nil
}

// MergeFile merges the exports in dir into output.
func MergeFile(dir, output string, opts Options) error {
	const op isaerr.Op = "biocrates.MergeFile"
	m, err := MergeDir(dir, opts)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return isaerr.E(op, isaerr.KindIO, err)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return isaerr.IO(op, output, err)
	}
	return nil
}
