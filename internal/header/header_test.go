package header

import (
	"testing"

	isaerr "github.com/nishad/isakit/internal/errors"
)

func TestClassifyOne(t *testing.T) {
	tests := []struct {
		raw   string
		kind  Kind
		label string
	}{
		{"Source Name", Material, "Source Name"},
		{"Labeled Extract Name", Material, "Labeled Extract Name"},
		{"Raw Data File", DataFile, "Raw Data File"},
		{"Derived  Spectral Data   file", DataFile, "Derived Spectral Data file"},
		{"Image File", DataFile, "Image File"},
		{"Assay Name", ProcessName, "Assay Name"},
		{"MS Assay Name", ProcessName, "MS Assay Name"},
		{"Data Transformation Name", ProcessName, "Data Transformation Name"},
		{"Protocol REF", ProtocolRef, "Protocol REF"},
		{"Characteristics[organism]", Characteristic, "organism"},
		{"Characteristics [organism part]", Characteristic, "organism part"},
		{"Factor Value[dose]", FactorValue, "dose"},
		{"Parameter Value[instrument]", ParameterValue, "instrument"},
		{"Comment[Export]", Comment, "Export"},
		{"Material Type", MaterialType, "Material Type"},
		{"Label", Characteristic, "Label"},
		{"Unit", Unit, "Unit"},
		{"Term Source REF", TermSourceRef, "Term Source REF"},
		{"Term Accession Number", TermAccession, "Term Accession Number"},
		{" Performer ", Performer, "Performer"},
		{"Date", Date, "Date"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s, ok := ClassifyOne(tt.raw)
			if !ok {
				t.Fatalf("ClassifyOne(%q) not recognised", tt.raw)
			}
			if s.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", s.Kind, tt.kind)
			}
			if s.Label != tt.label {
				t.Errorf("label = %q, want %q", s.Label, tt.label)
			}
		})
	}
}

func TestClassifyOneRejects(t *testing.T) {
	for _, raw := range []string{"Sample", "characteristics[organism]", "Characteristics[]", "Hybridization", ""} {
		if _, ok := ClassifyOne(raw); ok {
			t.Errorf("ClassifyOne(%q) should not be recognised", raw)
		}
	}
}

func TestClassifyOwnership(t *testing.T) {
	headers := []string{
		"Source Name",               // 0
		"Characteristics[organism]", // 1
		"Term Source REF",           // 2
		"Term Accession Number",     // 3
		"Protocol REF",              // 4
		"Parameter Value[temp]",     // 5
		"Unit",                      // 6
		"Term Source REF",           // 7
		"Term Accession Number",     // 8
		"Performer",                 // 9
		"Sample Name",               // 10
		"Factor Value[dose]",        // 11
		"Comment[note]",             // 12
	}
	l, err := Classify(headers, "s_test.txt")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	want := []int{-1, 0, 1, 1, -1, 4, 5, 6, 6, 4, -1, 10, 10}
	for i, w := range want {
		if l.Owner[i] != w {
			t.Errorf("Owner[%d] (%s) = %d, want %d", i, headers[i], l.Owner[i], w)
		}
	}
	if got := l.Nodes(); len(got) != 2 || got[0] != 0 || got[1] != 10 {
		t.Errorf("Nodes() = %v, want [0 10]", got)
	}
	if got := l.Owned(4); len(got) != 2 || got[0] != 5 || got[1] != 9 {
		t.Errorf("Owned(4) = %v, want [5 9]", got)
	}
}

func TestClassifyAssayFactorValueAttachesToSample(t *testing.T) {
	headers := []string{"Sample Name", "Protocol REF", "Extract Name", "Raw Data File", "Factor Value[dose]"}
	l, err := Classify(headers, "a_test.txt")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if l.Owner[4] != 0 {
		t.Errorf("factor value owner = %d, want 0", l.Owner[4])
	}
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		kind    isaerr.Kind
		col     int
	}{
		{"unknown header", []string{"Source Name", "Bogus"}, isaerr.KindUnknownHeader, 2},
		{"unit after node", []string{"Source Name", "Unit"}, isaerr.KindUnclassifiedModifier, 2},
		{"term source first", []string{"Term Source REF", "Source Name"}, isaerr.KindUnclassifiedModifier, 1},
		{"unit after material type", []string{"Extract Name", "Material Type", "Unit"}, isaerr.KindUnclassifiedModifier, 3},
		{"characteristic first", []string{"Characteristics[x]", "Source Name"}, isaerr.KindOrphanAttribute, 1},
		{"characteristic on protocol", []string{"Source Name", "Protocol REF", "Characteristics[x]"}, isaerr.KindOrphanAttribute, 3},
		{"parameter on node", []string{"Source Name", "Parameter Value[x]"}, isaerr.KindOrphanAttribute, 2},
		{"factor without sample", []string{"Source Name", "Factor Value[x]"}, isaerr.KindOrphanAttribute, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.headers, "s_bad.txt")
			if err == nil {
				t.Fatal("expected error")
			}
			if !isaerr.IsKind(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
			if pos := isaerr.GetPos(err); pos.Col != tt.col || pos.Row != 1 {
				t.Errorf("expected position 1:%d, got %d:%d", tt.col, pos.Row, pos.Col)
			}
		})
	}
}

func TestSlotHeader(t *testing.T) {
	for _, raw := range []string{"Characteristics[organism]", "Label", "Factor Value[dose]", "Comment[x]", "Raw Data File", "Protocol REF"} {
		s, ok := ClassifyOne(raw)
		if !ok {
			t.Fatalf("%q not recognised", raw)
		}
		if s.Header() != raw {
			t.Errorf("Header() = %q, want %q", s.Header(), raw)
		}
	}
}
