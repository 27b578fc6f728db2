// Package converter drives conversions between ISA-Tab bundles and
// ISA-JSON documents.
package converter

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/graph"
	"github.com/nishad/isakit/internal/investigation"
	"github.com/nishad/isakit/internal/isajson"
	"github.com/nishad/isakit/internal/metrics"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
)

// Conversion directions as reported to metrics.
const (
	DirectionTabToJSON = "tab-to-json"
	DirectionJSONToTab = "json-to-tab"
)

// DefaultInvestigationFile names the investigation file of a bundle built
// from a document that carries no file name.
const DefaultInvestigationFile = "i_investigation.txt"

// Options configures a Converter.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Pattern locates the investigation file of a bundle directory.
	// Empty means i_*.txt.
	Pattern string
	// StrictKeys rejects unknown investigation keys instead of skipping them.
	StrictKeys bool
	// Indent is the JSON indentation per level. Empty means two spaces.
	Indent string
}

// Converter handles conversions between ISA-Tab and ISA-JSON.
type Converter struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	pattern string
	strict  bool
	indent  string
}

// New creates a converter.
func New(opts Options) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = investigation.FilePattern
	}
	return &Converter{
		logger:  logger,
		metrics: opts.Metrics,
		pattern: pattern,
		strict:  opts.StrictKeys,
		indent:  opts.Indent,
	}
}

// LoadBundle reads the bundle in dir and builds every study and assay graph.
func (c *Converter) LoadBundle(dir string) (*models.Investigation, error) {
	return investigation.Load(dir, investigation.Options{
		Logger:     c.logger,
		Pattern:    c.pattern,
		StrictKeys: c.strict,
	})
}

// Marshal encodes inv as an ISA-JSON document.
func (c *Converter) Marshal(inv *models.Investigation) ([]byte, error) {
	return isajson.Marshal(inv, isajson.Options{Logger: c.logger, Indent: c.indent})
}

// TabToJSON converts the bundle in dir and writes the document to w. Nothing
// is written when the bundle fails to load.
func (c *Converter) TabToJSON(dir string, w io.Writer) (err error) {
	const op isaerr.Op = "converter.TabToJSON"
	start := time.Now()
	defer func() { c.metrics.ObserveConversion(DirectionTabToJSON, start, err) }()

	inv, err := c.LoadBundle(dir)
	if err != nil {
		return isaerr.Wrap(op, err)
	}
	data, err := c.Marshal(inv)
	if err != nil {
		return isaerr.Wrap(op, err)
	}
	if _, err := w.Write(data); err != nil {
		return isaerr.E(op, isaerr.KindIO, err)
	}
	c.logger.Info("converted bundle", "dir", dir, "studies", len(inv.Studies))
	return nil
}

// TabToJSONFile converts the bundle in dir into outputFile.
func (c *Converter) TabToJSONFile(dir, outputFile string) error {
	var buf bytes.Buffer
	if err := c.TabToJSON(dir, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, buf.Bytes(), 0o644); err != nil {
		return isaerr.IO("converter.TabToJSONFile", outputFile, err)
	}
	return nil
}

// JSONToTab converts a document into the files of a bundle keyed by file
// name.
func (c *Converter) JSONToTab(r io.Reader) (files map[string][]byte, err error) {
	const op isaerr.Op = "converter.JSONToTab"
	start := time.Now()
	defer func() { c.metrics.ObserveConversion(DirectionJSONToTab, start, err) }()

	doc, err := isajson.Decode(r)
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	inv, err := isajson.Ingest(doc, isajson.Options{Logger: c.logger})
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	files, err = c.Files(inv)
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	return files, nil
}

// Files renders inv as bundle files: the investigation file and one table
// per study and assay graph. Graphs without nodes produce no file.
func (c *Converter) Files(inv *models.Investigation) (map[string][]byte, error) {
	files := make(map[string][]byte)

	name := filepath.Base(inv.Filename)
	if inv.Filename == "" {
		name = DefaultInvestigationFile
	}
	var buf bytes.Buffer
	if err := investigation.Write(&buf, inv); err != nil {
		return nil, isaerr.E(isaerr.KindIO, isaerr.Pos{Path: name}, err)
	}
	files[name] = buf.Bytes()

	add := func(filename string, g *models.Graph) error {
		if g == nil || len(g.Nodes) == 0 {
			c.logger.Warn("graph is empty, no table written", "table", filename)
			return nil
		}
		if filename == "" {
			return isaerr.Errorf("converter.Files", isaerr.KindMalformedDocument, isaerr.Pos{},
				"graph with %d nodes has no file name", len(g.Nodes))
		}
		t, err := graph.Tabulate(g, c.logger)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := tabular.Write(&buf, t); err != nil {
			return isaerr.E(isaerr.KindIO, isaerr.Pos{Path: filename}, err)
		}
		files[filepath.Base(filename)] = buf.Bytes()
		return nil
	}
	for _, s := range inv.Studies {
		if err := add(s.Filename, s.Graph); err != nil {
			return nil, err
		}
		for _, a := range s.Assays {
			if err := add(a.Filename, a.Graph); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

// JSONToTabDir converts the document in inputJSON into a bundle in
// outputDir, creating the directory when needed.
func (c *Converter) JSONToTabDir(inputJSON, outputDir string) error {
	const op isaerr.Op = "converter.JSONToTabDir"

	f, err := os.Open(inputJSON)
	if err != nil {
		return isaerr.IO(op, inputJSON, err)
	}
	files, err := c.JSONToTab(f)
	f.Close()
	if err != nil {
		return isaerr.E(isaerr.Pos{Path: inputJSON}, err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return isaerr.IO(op, outputDir, err)
	}
	for _, name := range SortedNames(files) {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return isaerr.IO(op, path, err)
		}
	}
	c.logger.Info("wrote bundle", "dir", outputDir, "files", len(files))
	return nil
}

// SortedNames returns the file names of a bundle in lexical order.
func SortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckBundle parses every table of the bundle in dir independently and
// returns all the errors found. A failure to read the investigation file
// itself is returned alone.
func (c *Converter) CheckBundle(dir string) error {
	file, err := investigation.LocateGlob(dir, c.pattern)
	if err != nil {
		return err
	}
	read := investigation.ReadFile
	if c.strict {
		read = investigation.ReadFileStrict
	}
	inv, err := read(file, c.logger)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	if err := investigation.CheckOntologySources(inv); err != nil {
		errs = multierror.Append(errs, isaerr.E(isaerr.Pos{Path: file}, err))
	}
	base := filepath.Dir(file)
	check := func(name string, table graph.TableKind, scope models.StudyScope) {
		if name == "" {
			return
		}
		t, err := tabular.ReadFile(filepath.Join(base, name))
		if err != nil {
			errs = multierror.Append(errs, err)
			return
		}
		if _, err := graph.BuildTable(t, graph.Options{Scope: scope, Table: table, Logger: c.logger}); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, s := range inv.Studies {
		scope := models.StudyScope{Investigation: inv, Study: s}
		check(s.Filename, graph.StudyTable, scope)
		for _, a := range s.Assays {
			check(a.Filename, graph.AssayTable, scope)
		}
	}
	return errs.ErrorOrNil()
}
