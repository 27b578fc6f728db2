// Package header classifies the column headers of study and assay tables
// and derives the ownership map that ties every attribute and modifier
// column to the column it describes.
package header

import (
	"regexp"
	"strings"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/models"
)

// Kind is the semantic type of a column.
type Kind uint8

const (
	Material Kind = iota + 1
	DataFile
	ProcessName
	ProtocolRef
	Characteristic
	FactorValue
	ParameterValue
	MaterialType
	Unit
	TermSourceRef
	TermAccession
	Performer
	Date
	Comment
)

var kindNames = map[Kind]string{
	Material:       "material",
	DataFile:       "data-file",
	ProcessName:    "process-name",
	ProtocolRef:    "protocol-ref",
	Characteristic: "characteristic",
	FactorValue:    "factor-value",
	ParameterValue: "parameter-value",
	MaterialType:   "material-type",
	Unit:           "unit",
	TermSourceRef:  "term-source-ref",
	TermAccession:  "term-accession",
	Performer:      "performer",
	Date:           "date",
	Comment:        "comment",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsNode reports whether the column holds graph vertices.
func (k Kind) IsNode() bool { return k == Material || k == DataFile }

// IsAnchor reports whether the column can own attribute columns.
func (k Kind) IsAnchor() bool { return k.IsNode() || k == ProtocolRef || k == ProcessName }

// IsModifier reports whether the column qualifies the value of another column.
func (k Kind) IsModifier() bool { return k == Unit || k == TermSourceRef || k == TermAccession }

// IsValue reports whether the column carries a value that modifiers may annotate.
func (k Kind) IsValue() bool {
	return k == Characteristic || k == FactorValue || k == ParameterValue || k == MaterialType
}

// Process-name columns.
const (
	AssayName              = "Assay Name"
	MSAssayName            = "MS Assay Name"
	NMRAssayName           = "NMR Assay Name"
	HybridizationAssayName = "Hybridization Assay Name"
	ScanName               = "Scan Name"
	NormalizationName      = "Normalization Name"
	DataTransformationName = "Data Transformation Name"
)

var processNames = map[string]bool{
	AssayName:              true,
	MSAssayName:            true,
	NMRAssayName:           true,
	HybridizationAssayName: true,
	ScanName:               true,
	NormalizationName:      true,
	DataTransformationName: true,
}

// LabelHeader is the labeled-extract label column, read as characteristic "Label".
const LabelHeader = "Label"

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	bracketTag = regexp.MustCompile(`^(Characteristics|Factor Value|Parameter Value|Comment)\s*\[(.*)\]$`)
	fileSuffix = regexp.MustCompile(`(?i)\sfile$`)
)

// Slot is one classified column.
type Slot struct {
	Index int // 0-based column position
	Raw   string
	Kind  Kind
	// Label is the text inside brackets for tagged columns, the normalised
	// header for node and process-name columns, and "Label" for the Label column.
	Label string
}

// Header returns the canonical header text of the slot.
func (s Slot) Header() string {
	switch s.Kind {
	case Characteristic:
		if s.Label == LabelHeader && normalize(s.Raw) == LabelHeader {
			return LabelHeader
		}
		return "Characteristics[" + s.Label + "]"
	case FactorValue:
		return "Factor Value[" + s.Label + "]"
	case ParameterValue:
		return "Parameter Value[" + s.Label + "]"
	case Comment:
		return "Comment[" + s.Label + "]"
	}
	return s.Label
}

// Layout is a classified header row with its ownership map. Owner[i] is the
// index of the slot that slot i belongs to: an anchor for attribute slots,
// the modified slot for modifiers, and -1 for anchors.
type Layout struct {
	Path  string
	Slots []Slot
	Owner []int
}

// OwnerOf returns the owner of slot i, or -1.
func (l *Layout) OwnerOf(i int) int {
	if i < 0 || i >= len(l.Owner) {
		return -1
	}
	return l.Owner[i]
}

// Owned returns the slots owned by slot i, in column order.
func (l *Layout) Owned(i int) []int {
	var out []int
	for j, o := range l.Owner {
		if o == i {
			out = append(out, j)
		}
	}
	return out
}

// Nodes returns the indices of node slots in column order.
func (l *Layout) Nodes() []int {
	var out []int
	for _, s := range l.Slots {
		if s.Kind.IsNode() {
			out = append(out, s.Index)
		}
	}
	return out
}

func normalize(h string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(h, " "))
}

// ClassifyOne classifies a single header string. The returned slot has no
// position. ok is false when the header is not part of the vocabulary.
func ClassifyOne(raw string) (Slot, bool) {
	h := normalize(raw)
	s := Slot{Raw: raw, Label: h}

	if _, ok := models.MaterialKind(h); ok {
		s.Kind = Material
		return s, true
	}
	if fileSuffix.MatchString(h) {
		s.Kind = DataFile
		return s, true
	}
	if processNames[h] {
		s.Kind = ProcessName
		return s, true
	}
	if m := bracketTag.FindStringSubmatch(h); m != nil {
		s.Label = strings.TrimSpace(m[2])
		switch m[1] {
		case "Characteristics":
			s.Kind = Characteristic
		case "Factor Value":
			s.Kind = FactorValue
		case "Parameter Value":
			s.Kind = ParameterValue
		case "Comment":
			s.Kind = Comment
		}
		if s.Label == "" {
			return Slot{}, false
		}
		return s, true
	}
	switch h {
	case "Protocol REF":
		s.Kind = ProtocolRef
	case models.MaterialTypeLabel:
		s.Kind = MaterialType
	case "Unit":
		s.Kind = Unit
	case "Term Source REF":
		s.Kind = TermSourceRef
	case "Term Accession Number":
		s.Kind = TermAccession
	case "Performer":
		s.Kind = Performer
	case "Date":
		s.Kind = Date
	case LabelHeader:
		s.Kind = Characteristic
	default:
		return Slot{}, false
	}
	return s, true
}

// Classify classifies a header row and builds its ownership map.
func Classify(headers []string, path string) (*Layout, error) {
	const op isaerr.Op = "header.Classify"

	l := &Layout{Path: path, Slots: make([]Slot, len(headers)), Owner: make([]int, len(headers))}
	for i, raw := range headers {
		s, ok := ClassifyOne(raw)
		if !ok {
			return nil, isaerr.Errorf(op, isaerr.KindUnknownHeader,
				isaerr.Pos{Path: path, Row: 1, Col: i + 1}, "unknown header %q", raw)
		}
		s.Index = i
		l.Slots[i] = s
		l.Owner[i] = -1
	}

	anchor := -1
	sample := -1
	for i, s := range l.Slots {
		pos := isaerr.Pos{Path: path, Row: 1, Col: i + 1}
		switch {
		case s.Kind.IsAnchor():
			anchor = i
			if s.Kind == Material && s.Label == models.HeaderSample {
				sample = i
			}

		case s.Kind.IsModifier():
			target, ok := modifierTarget(l, i)
			if !ok {
				return nil, isaerr.Errorf(op, isaerr.KindUnclassifiedModifier, pos,
					"%q does not follow a value column", s.Raw)
			}
			l.Owner[i] = target

		default:
			if anchor < 0 {
				return nil, isaerr.Errorf(op, isaerr.KindOrphanAttribute, pos,
					"%q precedes every node column", s.Raw)
			}
			owner, err := attributeOwner(l, s, anchor, sample)
			if err != "" {
				return nil, isaerr.Errorf(op, isaerr.KindOrphanAttribute, pos, "%q %s", s.Raw, err)
			}
			l.Owner[i] = owner
		}
	}
	return l, nil
}

// modifierTarget finds the slot a modifier at i annotates: the value slot
// immediately before it, or the Unit / Term Source REF chain it continues.
func modifierTarget(l *Layout, i int) (int, bool) {
	if i == 0 {
		return -1, false
	}
	prev := l.Slots[i-1]
	switch l.Slots[i].Kind {
	case Unit:
		if prev.Kind == Characteristic || prev.Kind == FactorValue || prev.Kind == ParameterValue {
			return i - 1, true
		}
	case TermSourceRef:
		if prev.Kind.IsValue() || prev.Kind == Unit {
			return i - 1, true
		}
	case TermAccession:
		if prev.Kind == TermSourceRef {
			return l.Owner[i-1], true
		}
		if prev.Kind.IsValue() || prev.Kind == Unit {
			return i - 1, true
		}
	}
	return -1, false
}

// attributeOwner decides which anchor owns an attribute slot. It returns a
// reason instead of an error so the caller can attach coordinates.
func attributeOwner(l *Layout, s Slot, anchor, sample int) (int, string) {
	ak := l.Slots[anchor].Kind
	switch s.Kind {
	case Characteristic, MaterialType:
		if ak != Material {
			return -1, "must follow a material node column"
		}
		return anchor, ""
	case FactorValue:
		if ak == Material && l.Slots[anchor].Label == models.HeaderSample {
			return anchor, ""
		}
		if sample >= 0 {
			return sample, ""
		}
		return -1, "has no Sample Name column to attach to"
	case ParameterValue, Performer, Date:
		if ak != ProtocolRef && ak != ProcessName {
			return -1, "must follow a Protocol REF or process name column"
		}
		return anchor, ""
	case Comment:
		return anchor, ""
	}
	return -1, "cannot be owned"
}
