// Package sra turns archive accession numbers into ISA-Tab bundles by
// running the ENA stylesheets through an external XSLT 2.0 processor.
package sra

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/tabular"
)

const (
	// StudyStylesheet converts SRA/ERA study accessions.
	StudyStylesheet = "sra-study-embl-online2isatab.xsl"
	// SubmissionStylesheet converts SRP/ERP submission accessions.
	SubmissionStylesheet = "sra-submission-embl-online2isatab-txt.xsl"
	// BlankInput is the empty source document handed to the processor.
	BlankInput = "blank.xml"
)

var accessionPattern = regexp.MustCompile(`^(ERA|SRA|ERP|SRP)([0-9]+)$`)

// Options configures a Converter.
type Options struct {
	Java           string // java binary, "java" if empty
	Processor      string // XSLT processor jar
	StylesheetsDir string
	WorkDir        string // parent of per-accession temp dirs; os.TempDir() if empty
	Parallelism    int
	Timeout        time.Duration // per accession; zero means none
	Logger         *slog.Logger
}

// Result describes one converted accession.
type Result struct {
	Accession string
	Dir       string
	Files     []string
}

// Converter runs the stylesheet transformation for a batch of accessions.
type Converter struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Converter.
func New(opts Options) *Converter {
	if opts.Java == "" {
		opts.Java = "java"
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Converter{opts: opts, logger: logger}
}

// ParseAccessions splits comma-separated arguments, normalises case and
// rejects anything that is not a study or submission accession.
func ParseAccessions(args []string) ([]string, error) {
	const op isaerr.Op = "sra.ParseAccessions"
	var out []string
	for _, arg := range args {
		for _, acc := range strings.Split(arg, ",") {
			acc = strings.ToUpper(strings.TrimSpace(acc))
			if acc == "" {
				continue
			}
			if !accessionPattern.MatchString(acc) {
				return nil, isaerr.Errorf(op, isaerr.KindConfig, isaerr.Pos{}, "invalid accession %q", acc)
			}
			if !slices.Contains(out, acc) {
				out = append(out, acc)
			}
		}
	}
	if len(out) == 0 {
		return nil, isaerr.Errorf(op, isaerr.KindConfig, isaerr.Pos{}, "no accession given")
	}
	return out, nil
}

// Stylesheet returns the stylesheet file name for a validated accession.
func Stylesheet(acc string) string {
	switch acc[:3] {
	case "SRP", "ERP":
		return SubmissionStylesheet
	default:
		return StudyStylesheet
	}
}

// Check verifies that the processor and stylesheets are where the options
// say they are.
func (c *Converter) Check() error {
	const op isaerr.Op = "sra.Check"
	for _, p := range []string{
		c.opts.Processor,
		filepath.Join(c.opts.StylesheetsDir, BlankInput),
		filepath.Join(c.opts.StylesheetsDir, StudyStylesheet),
		filepath.Join(c.opts.StylesheetsDir, SubmissionStylesheet),
	} {
		if _, err := os.Stat(p); err != nil {
			return isaerr.E(op, isaerr.KindConfig, isaerr.Pos{Path: p}, err, "xslt resources not found")
		}
	}
	return nil
}

// Convert transforms every accession into OUTPUT_DIR/<accession>. Accessions
// run concurrently up to the configured parallelism; the first failure
// cancels the rest.
func (c *Converter) Convert(ctx context.Context, accessions []string, outputDir string) ([]Result, error) {
	results := make([]Result, len(accessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)
	for i, acc := range accessions {
		g.Go(func() error {
			res, err := c.convertOne(gctx, acc, outputDir)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Converter) convertOne(ctx context.Context, acc, outputDir string) (Result, error) {
	const op isaerr.Op = "sra.Convert"
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	if c.opts.WorkDir != "" {
		if err := os.MkdirAll(c.opts.WorkDir, 0o755); err != nil {
			return Result{}, isaerr.IO(op, c.opts.WorkDir, err)
		}
	}
	work, err := os.MkdirTemp(c.opts.WorkDir, strings.ToLower(acc)+"-")
	if err != nil {
		return Result{}, isaerr.IO(op, c.opts.WorkDir, err)
	}
	defer func() {
		isaerr.IgnoreError(c.logger, os.RemoveAll(work), "removing work dir")
	}()

	args := []string{
		"-jar", c.opts.Processor,
		filepath.Join(c.opts.StylesheetsDir, BlankInput),
		filepath.Join(c.opts.StylesheetsDir, Stylesheet(acc)),
		"acc-number=" + acc,
		"outputdir=" + work,
	}
	c.logger.Info("running xslt processor", "accession", acc, "stylesheet", Stylesheet(acc))
	cmd := exec.CommandContext(ctx, c.opts.Java, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = io.Discard
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "xslt processor failed"
		}
		return Result{}, isaerr.E(op, isaerr.KindSubprocess, isaerr.Pos{Path: acc}, err, msg)
	}

	produced := filepath.Join(work, acc)
	if info, err := os.Stat(produced); err != nil || !info.IsDir() {
		return Result{}, isaerr.Errorf(op, isaerr.KindSubprocess, isaerr.Pos{Path: acc}, "processor wrote no output for %s", acc)
	}
	if err := c.mergeAssays(produced, acc); err != nil {
		return Result{}, err
	}

	dest := filepath.Join(outputDir, acc)
	files, err := copyDir(produced, dest)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("converted accession", "accession", acc, "files", len(files))
	return Result{Accession: acc, Dir: dest, Files: files}, nil
}

// mergeAssays concatenates several a_*.txt files into a_<acc>.txt when they
// share a header. Files with differing headers are left alone.
func (c *Converter) mergeAssays(dir, acc string) error {
	const op isaerr.Op = "sra.mergeAssays"
	names, err := filepath.Glob(filepath.Join(dir, "a_*.txt"))
	if err != nil {
		return isaerr.IO(op, dir, err)
	}
	if len(names) < 2 {
		return nil
	}
	slices.Sort(names)

	var header []string
	var rows [][]string
	for _, name := range names {
		t, err := tabular.ReadFile(name)
		if err != nil {
			return err
		}
		if header == nil {
			header = t.Header
		} else if !slices.Equal(header, t.Header) {
			c.logger.Warn("assay headers differ, not merging", "accession", acc, "file", filepath.Base(name))
			return nil
		}
		for _, r := range t.Rows {
			rows = append(rows, r.Cells)
		}
	}

	merged := &tabular.Table{Path: filepath.Join(dir, "a_"+acc+".txt"), Header: header}
	for i, cells := range rows {
		merged.Rows = append(merged.Rows, tabular.Row{Line: i + 2, Cells: cells})
	}
	for _, name := range names {
		if err := os.Remove(name); err != nil {
			return isaerr.IO(op, name, err)
		}
	}
	return tabular.WriteFile(merged.Path, merged)
}

func copyDir(src, dst string) ([]string, error) {
	const op isaerr.Op = "sra.copy"
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, isaerr.IO(op, src, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, isaerr.IO(op, dst, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			return nil, isaerr.IO(op, src, err)
		}
		target := filepath.Join(dst, e.Name())
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return nil, isaerr.IO(op, target, err)
		}
		files = append(files, e.Name())
	}
	return files, nil
}
