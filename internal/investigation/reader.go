// Package investigation reads and writes the investigation file of an
// ISA-Tab bundle and loads the study and assay tables it declares.
package investigation

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
)

// FilePattern matches investigation file names.
const FilePattern = "i_*.txt"

var (
	markerLine = regexp.MustCompile(`^[A-Z][A-Z ]*$`)
	commentKey = regexp.MustCompile(`^Comment\s*\[(.*)\]$`)
)

// Locate resolves path to an investigation file. A directory must contain
// exactly one file matching FilePattern.
func Locate(path string) (string, error) {
	return LocateGlob(path, FilePattern)
}

// LocateGlob is Locate with another file name pattern. An empty pattern
// means FilePattern.
func LocateGlob(path, pattern string) (string, error) {
	const op isaerr.Op = "investigation.Locate"
	if pattern == "" {
		pattern = FilePattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return "", isaerr.E(op, isaerr.KindConfig, err, "bad investigation file pattern")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", isaerr.E(op, isaerr.KindInvestigationMissing, isaerr.Pos{Path: path}, err)
		}
		return "", isaerr.IO(op, path, err)
	}
	if !info.IsDir() {
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); !ok {
			return "", isaerr.Errorf(op, isaerr.KindInvestigationMissing, isaerr.Pos{Path: path},
				"%s does not match %s", filepath.Base(path), pattern)
		}
		return path, nil
	}

	matches, err := filepath.Glob(filepath.Join(path, pattern))
	if err != nil {
		return "", isaerr.IO(op, path, err)
	}
	switch len(matches) {
	case 0:
		return "", isaerr.Errorf(op, isaerr.KindInvestigationMissing, isaerr.Pos{Path: path},
			"no %s file in directory", pattern)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = filepath.Base(m)
		}
		return "", isaerr.Errorf(op, isaerr.KindInvestigationAmbiguous, isaerr.Pos{Path: path},
			"several investigation files: %s", strings.Join(names, ", "))
	}
}

// block is one section of the investigation file.
type block struct {
	name         string
	line         int
	values       map[string][]string
	lines        map[string]int
	commentNames []string // in file order
}

func newBlock(name string, line int) *block {
	return &block{name: name, line: line, values: make(map[string][]string), lines: make(map[string]int)}
}

// count returns the number of entities described by the block.
func (b *block) count() int {
	n := 0
	for _, v := range b.values {
		if len(v) > n {
			n = len(v)
		}
	}
	return n
}

func (b *block) get(key string, i int) string {
	v := b.values[key]
	if i < len(v) {
		return v[i]
	}
	return ""
}

func (b *block) comments(i int) []models.Comment {
	var out []models.Comment
	for _, name := range b.commentNames {
		v := b.get("Comment["+name+"]", i)
		out = append(out, models.Comment{Name: name, Value: v})
	}
	return out
}

// parse splits investigation file records into sections.
func parse(records []tabular.Record, path string, strict bool, logger *slog.Logger) ([]*block, error) {
	const op isaerr.Op = "investigation.parse"

	var blocks []*block
	var cur *block
	for _, rec := range records {
		cells := tabular.TrimTrailingEmpty(rec.Cells)
		if len(cells) == 0 {
			continue
		}
		key := strings.TrimSpace(cells[0])
		values := make([]string, len(cells)-1)
		for i, c := range cells[1:] {
			values[i] = strings.TrimSpace(c)
		}
		pos := isaerr.Pos{Path: path, Row: rec.Line, Col: 1}

		if len(values) == 0 && markerLine.MatchString(key) {
			if !knownSection(key) {
				return nil, isaerr.Errorf(op, isaerr.KindMalformedSection, pos, "unknown section %q", key)
			}
			cur = newBlock(key, rec.Line)
			blocks = append(blocks, cur)
			continue
		}
		if cur == nil {
			return nil, isaerr.Errorf(op, isaerr.KindMalformedSection, pos, "%q appears before the first section", key)
		}

		if m := commentKey.FindStringSubmatch(key); m != nil {
			name := strings.TrimSpace(m[1])
			key = "Comment[" + name + "]"
			if _, dup := cur.values[key]; !dup {
				cur.commentNames = append(cur.commentNames, name)
			}
		} else if !sectionKeys[cur.name][key] {
			if strict {
				return nil, isaerr.Errorf(op, isaerr.KindMalformedSection, pos,
					"unknown key %q in %s", key, cur.name)
			}
			logger.Warn("ignoring unknown key", "path", path, "line", rec.Line, "section", cur.name, "key", key)
			continue
		}
		if prev, dup := cur.lines[key]; dup {
			return nil, isaerr.Errorf(op, isaerr.KindMalformedSection, pos,
				"%q repeats the key on line %d", key, prev)
		}
		cur.values[key] = values
		cur.lines[key] = rec.Line
	}
	return blocks, nil
}

// Read parses investigation file content. Unknown keys are ignored with a
// warning; unknown or misplaced section markers are a KindMalformedSection
// error. The returned investigation carries no graphs.
func Read(data []byte, path string, logger *slog.Logger) (*models.Investigation, error) {
	return read(data, path, false, logger)
}

// ReadStrict is Read with unknown keys reported as KindMalformedSection.
func ReadStrict(data []byte, path string, logger *slog.Logger) (*models.Investigation, error) {
	return read(data, path, true, logger)
}

func read(data []byte, path string, strict bool, logger *slog.Logger) (*models.Investigation, error) {
	const op isaerr.Op = "investigation.Read"
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	records, err := tabular.Records(data, path)
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	blocks, err := parse(records, path, strict, logger)
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}

	inv := &models.Investigation{Filename: filepath.Base(path)}
	seen := make(map[string]bool)
	var study *models.Study
	for _, b := range blocks {
		pos := isaerr.Pos{Path: path, Row: b.line, Col: 1}
		if studySections[b.name] {
			if study == nil {
				return nil, isaerr.Errorf(op, isaerr.KindMalformedSection, pos, "%s outside a STUDY", b.name)
			}
		} else if b.name != SectionStudy {
			if seen[b.name] {
				return nil, isaerr.Errorf(op, isaerr.KindMalformedSection, pos, "%s appears twice", b.name)
			}
			seen[b.name] = true
		}

		switch b.name {
		case SectionOntologySources:
			inv.OntologySources = ontologySources.decode(b)
		case SectionInvestigation:
			if infos := investigationInfo.decode(b); len(infos) > 0 {
				info := infos[0]
				inv.Identifier = info.Identifier
				inv.Title = info.Title
				inv.Description = info.Description
				inv.SubmissionDate = info.SubmissionDate
				inv.PublicReleaseDate = info.PublicReleaseDate
				inv.Comments = info.Comments
			}
		case SectionInvestigationPubs:
			inv.Publications = investigationPubs.decode(b)
		case SectionInvestigationContacts:
			inv.Contacts = investigationContacts.decode(b)
		case SectionStudy:
			study = &models.Study{}
			if infos := studyInfo.decode(b); len(infos) > 0 {
				*study = infos[0]
			}
			inv.Studies = append(inv.Studies, study)
		case SectionStudyDesignDescriptors:
			study.DesignDescriptors = designDescriptors.decode(b)
		case SectionStudyPubs:
			study.Publications = studyPubs.decode(b)
		case SectionStudyFactors:
			study.Factors = studyFactors.decode(b)
		case SectionStudyAssays:
			for _, a := range studyAssays.decode(b) {
				study.Assays = append(study.Assays, &a)
			}
		case SectionStudyProtocols:
			study.Protocols = studyProtocols.decode(b)
		case SectionStudyContacts:
			study.Contacts = studyContacts.decode(b)
		}
	}
	logger.Debug("read investigation", "path", path, "studies", len(inv.Studies))
	return inv, nil
}

// ReadFile reads the investigation file at path.
func ReadFile(path string, logger *slog.Logger) (*models.Investigation, error) {
	return readFile(path, false, logger)
}

// ReadFileStrict is ReadFile rejecting unknown keys.
func ReadFileStrict(path string, logger *slog.Logger) (*models.Investigation, error) {
	return readFile(path, true, logger)
}

func readFile(path string, strict bool, logger *slog.Logger) (*models.Investigation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, isaerr.IO("investigation.ReadFile", path, err)
	}
	return read(data, path, strict, logger)
}
