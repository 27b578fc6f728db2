package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
)

func cells(t *tabular.Table) [][]string {
	out := [][]string{t.Header}
	for _, r := range t.Rows {
		out = append(out, r.Cells)
	}
	return out
}

func TestTabulateRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{
			name: "study",
			rows: [][]string{
				{"Source Name", "Characteristics[Organism]", "Term Source REF", "Term Accession Number", "Protocol REF", "Sample Name", "Characteristics[organ]", "Factor Value[dose]", "Unit", "Term Source REF", "Term Accession Number", "Comment[note]"},
				{"src1", "Homo sapiens", "NCBITAXON", "NCBITaxon_9606", "sample collection", "s1", "liver", "10", "milligram", "UO", "UO_0000022", "first"},
				{"src1", "Homo sapiens", "NCBITAXON", "NCBITaxon_9606", "sample collection", "s2", "kidney", "20", "milligram", "UO", "UO_0000022", ""},
				{"src2", "Mus musculus", "NCBITAXON", "NCBITaxon_10090", "sample collection", "s3", "liver", "10", "milligram", "UO", "UO_0000022", "third"},
			},
		},
		{
			name: "assay",
			rows: [][]string{
				{"Sample Name", "Protocol REF", "Parameter Value[temperature]", "Unit", "Term Source REF", "Term Accession Number", "Extract Name", "Material Type", "Protocol REF", "Parameter Value[instrument]", "Performer", "Date", "Comment[lane]", "Assay Name", "Raw Data File", "Comment[checksum]"},
				{"s1", "extraction", "4", "degree Celsius", "UO", "UO_0000027", "e1", "RNA", "sequencing", "HiSeq", "alice", "2024-01-01", "1", "run1", "r1.fastq", "abc"},
				{"s1", "extraction", "4", "degree Celsius", "UO", "UO_0000027", "e2", "RNA", "sequencing", "HiSeq", "", "2024-01-02", "2", "run2", "r2.fastq", "def"},
				{"s2", "extraction", "8", "", "", "", "e3", "DNA", "sequencing", "MiSeq", "bob", "", "", "run3", "r3.fastq", ""},
			},
		},
		{
			name: "chained steps",
			rows: [][]string{
				{"Sample Name", "Protocol REF", "Extract Name", "Protocol REF", "MS Assay Name", "Raw Spectral Data File", "Protocol REF", "Data Transformation Name", "Derived Spectral Data File"},
				{"s1", "extraction", "e1", "mass spectrometry", "ms1", "raw1.mzML", "data transformation", "dt1", "d1.txt"},
				{"s2", "extraction", "e2", "mass spectrometry", "ms2", "raw2.mzML", "", "", ""},
			},
		},
		{
			name: "process names without protocols",
			rows: [][]string{
				{"Sample Name", "Protocol REF", "Labeled Extract Name", "Label", "Term Source REF", "Term Accession Number", "Hybridization Assay Name", "Comment[array]", "Scan Name", "Image File"},
				{"s1", "labeling", "le1", "Cy3", "CHEBI", "CHEBI_37987", "hyb1", "A-1", "scan1", "img1.tif"},
			},
		},
		{
			name: "assay name without data file",
			rows: [][]string{
				{"Sample Name", "Protocol REF", "Extract Name", "Protocol REF", "Assay Name", "Raw Data File"},
				{"s1", "extraction", "e1", "sequencing", "run-1", ""},
				{"s2", "extraction", "e2", "sequencing", "run-2", "r2.fastq"},
			},
		},
		{
			name: "steps after the last node column",
			rows: [][]string{
				{"Sample Name", "Protocol REF", "Extract Name", "Protocol REF", "Assay Name"},
				{"s1", "extraction", "e1", "sequencing", "run-1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := table(t, "t.txt", tt.rows...)
			g, err := BuildTable(in, Options{})
			if err != nil {
				t.Fatalf("BuildTable() error = %v", err)
			}
			out, err := Tabulate(g, nil)
			if err != nil {
				t.Fatalf("Tabulate() error = %v", err)
			}
			if diff := cmp.Diff(cells(in), cells(out)); diff != "" {
				t.Errorf("round trip mismatch (-in +out):\n%s", diff)
			}
		})
	}
}

func TestPathsEnumeratesBranches(t *testing.T) {
	in := table(t, "s.txt",
		[]string{"Source Name", "Sample Name", "Extract Name"},
		[]string{"src", "s1", "e1"},
		[]string{"src", "s1", "e2"},
		[]string{"src", "s2", "e3"},
		[]string{"lone", "", ""},
	)
	g, err := BuildTable(in, Options{})
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}
	paths := Paths(g)
	var names [][]string
	for _, p := range paths {
		var row []string
		for _, n := range p.Nodes {
			row = append(row, g.Nodes[n].Name)
		}
		names = append(names, row)
	}
	want := [][]string{{"src", "s1", "e1"}, {"src", "s1", "e2"}, {"src", "s2", "e3"}, {"lone"}}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Paths() mismatch (-want +got):\n%s", diff)
	}
}

func TestNodeColumns(t *testing.T) {
	g := models.NewGraph("a.txt")
	raw := g.AddNode(models.Node{Kind: models.NodeDataFile, Label: "Raw Data File", Name: "r"})
	der := g.AddNode(models.Node{Kind: models.NodeDataFile, Label: "Derived Data File", Name: "d"})
	le := g.AddNode(models.Node{Kind: models.NodeLabeledExtract, Label: models.HeaderLabeledExtract, Name: "le"})
	s := g.AddNode(models.Node{Kind: models.NodeSample, Label: models.HeaderSample, Name: "s"})
	g.AddEdge(models.Edge{Input: s, Output: le})
	g.AddEdge(models.Edge{Input: le, Output: raw})
	g.AddEdge(models.Edge{Input: raw, Output: der})

	want := []string{models.HeaderSample, models.HeaderLabeledExtract, "Raw Data File", "Derived Data File"}
	if diff := cmp.Diff(want, NodeColumns(g)); diff != "" {
		t.Errorf("NodeColumns() mismatch (-want +got):\n%s", diff)
	}
}

func TestTabulateDisconnectedPath(t *testing.T) {
	g := models.NewGraph("a_gap.txt")
	s1 := g.AddNode(models.Node{Kind: models.NodeSample, Label: models.HeaderSample, Name: "s1"})
	e1 := g.AddNode(models.Node{Kind: models.NodeExtract, Label: models.HeaderExtract, Name: "e1"})
	r1 := g.AddNode(models.Node{Kind: models.NodeDataFile, Label: "Raw Data File", Name: "r1"})
	s2 := g.AddNode(models.Node{Kind: models.NodeSample, Label: models.HeaderSample, Name: "s2"})
	r2 := g.AddNode(models.Node{Kind: models.NodeDataFile, Label: "Raw Data File", Name: "r2"})
	g.AddEdge(models.Edge{Input: s1, Output: e1})
	g.AddEdge(models.Edge{Input: e1, Output: r1})
	g.AddEdge(models.Edge{Input: s2, Output: r2})

	_, err := Tabulate(g, nil)
	if !isaerr.IsKind(err, isaerr.KindDisconnectedRow) {
		t.Fatalf("expected DisconnectedRow, got %v", err)
	}
}

func TestTabulateDropsDuplicateRows(t *testing.T) {
	g := models.NewGraph("a_dup.txt")
	s := g.AddNode(models.Node{Kind: models.NodeSample, Label: models.HeaderSample, Name: "s"})
	e := g.AddNode(models.Node{Kind: models.NodeExtract, Label: models.HeaderExtract, Name: "e"})
	g.AddEdge(models.Edge{Input: s, Output: e, Steps: []models.Step{{Protocol: "extraction"}}})
	g.AddEdge(models.Edge{Input: s, Output: e, Steps: []models.Step{{Protocol: "extraction"}}})

	out, err := Tabulate(g, nil)
	if err != nil {
		t.Fatalf("Tabulate() error = %v", err)
	}
	want := [][]string{
		{models.HeaderSample, "Protocol REF", models.HeaderExtract},
		{"s", "extraction", "e"},
	}
	if diff := cmp.Diff(want, cells(out)); diff != "" {
		t.Errorf("Tabulate() mismatch (-want +got):\n%s", diff)
	}
}
