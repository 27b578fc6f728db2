package isajson

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/graph"
	"github.com/nishad/isakit/internal/investigation"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
	"github.com/nishad/isakit/internal/testutil"
)

func studyOf(t *testing.T, rows ...[]string) *models.Investigation {
	t.Helper()
	tbl, err := tabular.Parse([]byte(testutil.TSV(rows...)), "s_a.txt")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g, err := graph.BuildTable(tbl, graph.Options{})
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}
	return &models.Investigation{
		Filename: "i_a.txt",
		Studies:  []*models.Study{{Identifier: "S1", Filename: "s_a.txt", Graph: g}},
	}
}

func mustEmit(t *testing.T, inv *models.Investigation) *Document {
	t.Helper()
	doc, err := Emit(inv, Options{})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	return doc
}

func cells(tbl *tabular.Table) [][]string {
	out := [][]string{tbl.Header}
	for _, r := range tbl.Rows {
		out = append(out, r.Cells)
	}
	return out
}

func TestEmitOneProcessPerSample(t *testing.T) {
	inv := studyOf(t,
		[]string{"Source Name", "Protocol REF", "Sample Name"},
		[]string{"src1", "sample collection", "s1"},
		[]string{"src1", "sample collection", "s2"},
	)
	doc := mustEmit(t, inv)
	s := doc.Studies[0]

	if len(s.Materials.Sources) != 1 || s.Materials.Sources[0].ID != "#source/src1" {
		t.Errorf("sources = %+v", s.Materials.Sources)
	}
	if len(s.Materials.Samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(s.Materials.Samples))
	}
	if diff := cmp.Diff([]Ref{{ID: "#source/src1"}}, s.Materials.Samples[1].DerivesFrom); diff != "" {
		t.Errorf("derivesFrom mismatch (-want +got):\n%s", diff)
	}
	if len(s.ProcessSequence) != 2 {
		t.Fatalf("processes = %d, want 2", len(s.ProcessSequence))
	}
	for i, p := range s.ProcessSequence {
		if p.ExecutesProtocol == nil || p.ExecutesProtocol.ID != "#protocol/sample%20collection" {
			t.Errorf("process %d protocol = %+v", i, p.ExecutesProtocol)
		}
		if len(p.Inputs) != 1 || p.Inputs[0].ID != "#source/src1" {
			t.Errorf("process %d inputs = %+v", i, p.Inputs)
		}
		want := s.Materials.Samples[i].ID
		if len(p.Outputs) != 1 || p.Outputs[0].ID != want {
			t.Errorf("process %d outputs = %+v, want %s", i, p.Outputs, want)
		}
		if p.Name != nil || p.Performer != nil || p.Date != nil {
			t.Errorf("process %d carries absent fields: %+v", i, p)
		}
	}
	if s.ProcessSequence[0].ID == s.ProcessSequence[1].ID {
		t.Errorf("process ids collide: %s", s.ProcessSequence[0].ID)
	}
}

func TestEmitAnnotatedCharacteristic(t *testing.T) {
	inv := studyOf(t,
		[]string{"Source Name", "Characteristics[Organism]", "Term Source REF", "Term Accession Number", "Characteristics[age]", "Unit", "Term Source REF", "Term Accession Number", "Protocol REF", "Sample Name"},
		[]string{"src1", "Homo sapiens", "NCBITAXON", "http://purl.obolibrary.org/obo/NCBITaxon_9606", "40", "year", "UO", "http://purl.obolibrary.org/obo/UO_0000036", "sample collection", "s1"},
	)
	doc := mustEmit(t, inv)
	s := doc.Studies[0]
	chars := s.Materials.Sources[0].Characteristics
	if len(chars) != 2 {
		t.Fatalf("characteristics = %d, want 2", len(chars))
	}
	if !chars[0].Value.Annotated || chars[0].Value.Source != "NCBITAXON" {
		t.Errorf("organism = %+v", chars[0].Value)
	}
	if chars[1].Unit == nil || len(s.UnitCategories) != 1 || s.UnitCategories[0].ID != chars[1].Unit.ID {
		t.Errorf("unit = %+v, categories = %+v", chars[1].Unit, s.UnitCategories)
	}
	if len(s.CharacteristicCategories) != 2 {
		t.Errorf("characteristic categories = %+v", s.CharacteristicCategories)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`"annotationValue": "Homo sapiens"`,
		`"termSource": "NCBITAXON"`,
		`"termAccession": "http://purl.obolibrary.org/obo/NCBITaxon_9606"`,
		`"value": "40"`,
	} {
		testutil.AssertContains(t, out, want, "encoded document")
	}
}

func TestEmitIsDeterministic(t *testing.T) {
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	inv, err := investigation.Load(dir, investigation.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	a, err := Marshal(inv, Options{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	b, err := Marshal(inv, Options{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two emissions of the same investigation differ")
	}
}

func TestRoundTripBundle(t *testing.T) {
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	inv, err := investigation.Load(dir, investigation.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	data, err := Marshal(inv, Options{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	doc, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	back, err := Ingest(doc, Options{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	var buf bytes.Buffer
	if err := investigation.Write(&buf, back); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if diff := cmp.Diff(testutil.InvestigationFile, buf.String()); diff != "" {
		t.Errorf("investigation file mismatch (-want +got):\n%s", diff)
	}

	graphs := map[string]*models.Graph{"s_study.txt": back.Studies[0].Graph}
	for _, a := range back.Studies[0].Assays {
		graphs[a.Filename] = a.Graph
	}
	for name, content := range testutil.Bundle() {
		if !strings.HasPrefix(name, "s_") && !strings.HasPrefix(name, "a_") {
			continue
		}
		t.Run(name, func(t *testing.T) {
			g := graphs[name]
			if g == nil {
				t.Fatalf("no graph for %s", name)
			}
			got, err := graph.Tabulate(g, nil)
			if err != nil {
				t.Fatalf("Tabulate() error = %v", err)
			}
			want, err := tabular.Parse([]byte(content), name)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(cells(want), cells(got)); diff != "" {
				t.Errorf("table mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssaySamplesShareStudyIDs(t *testing.T) {
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	inv, err := investigation.Load(dir, investigation.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s := mustEmit(t, inv).Studies[0]
	study := make(map[string]bool)
	for _, smp := range s.Materials.Samples {
		study[smp.ID] = true
	}
	for _, a := range s.Assays {
		for _, smp := range a.Materials.Samples {
			if !study[smp.ID] {
				t.Errorf("assay %s sample %s is not a study sample", a.Filename, smp.ID)
			}
		}
	}
	if got := len(s.Assays[1].DataFiles); got != 3 {
		t.Errorf("metabolome data files = %d, want 3", got)
	}
}

func TestIngestChainedProcesses(t *testing.T) {
	doc, err := Unmarshal([]byte(`{
  "filename": "i_x.txt",
  "studies": [{
    "filename": "s_x.txt",
    "protocols": [
      {"@id": "#protocol/labeling", "name": "labeling", "protocolType": {"annotationValue": "labeling"}},
      {"@id": "#protocol/hyb", "name": "hyb", "protocolType": {"annotationValue": "nucleic acid hybridization"},
       "parameters": [{"@id": "#parameter/hyb/temp", "parameterName": {"annotationValue": "temperature"}}]}
    ],
    "materials": {"samples": [{"@id": "#sample/s1", "name": "s1"}]},
    "assays": [{
      "filename": "a_x.txt",
      "unitCategories": [{"@id": "#unit/c", "annotationValue": "degree Celsius", "termSource": "UO", "termAccession": "UO_0000027"}],
      "dataFiles": [{"@id": "#data/raw", "name": "r1.txt", "type": "Array Data File"}],
      "processSequence": [
        {"@id": "#p/1", "executesProtocol": {"@id": "#protocol/labeling"}, "inputs": [{"@id": "#sample/s1"}], "outputs": [],
         "nextProcess": {"@id": "#p/2"}},
        {"@id": "#p/2", "name": "hyb1", "executesProtocol": {"@id": "#protocol/hyb"},
         "parameterValues": [{"category": {"@id": "#parameter/hyb/temp"}, "value": 42, "unit": {"@id": "#unit/c"}}],
         "previousProcess": {"@id": "#p/1"}, "inputs": [], "outputs": [{"@id": "#data/raw"}]}
      ]
    }]
  }]
}`))
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	inv, err := Ingest(doc, Options{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	g := inv.Studies[0].Assays[0].Graph
	if len(g.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(g.Edges))
	}
	e := g.Edges[0]
	if g.Nodes[e.Input].Name != "s1" || g.Nodes[e.Output].Label != "Array Data File" {
		t.Errorf("edge %s -> %s", g.Nodes[e.Input].Name, g.Nodes[e.Output].Label)
	}
	if len(e.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(e.Steps))
	}
	if e.Steps[0].Protocol != "labeling" || e.Steps[0].NameHeader != "" {
		t.Errorf("first step = %+v", e.Steps[0])
	}
	st := e.Steps[1]
	if st.Protocol != "hyb" || st.Name != "hyb1" || st.NameHeader != "Hybridization Assay Name" {
		t.Errorf("second step = %+v", st)
	}
	if len(st.Parameters) != 1 {
		t.Fatalf("parameters = %+v", st.Parameters)
	}
	p := st.Parameters[0]
	if p.Label != "temperature" || p.Value.Term != "42" || p.Unit == nil || p.Unit.Source != "UO" {
		t.Errorf("parameter = %+v unit %+v", p, p.Unit)
	}
}

func TestIngestZeroStepEdge(t *testing.T) {
	doc := mustEmit(t, studyOf(t,
		[]string{"Source Name", "Sample Name"},
		[]string{"src1", "s1"},
	))
	if n := len(doc.Studies[0].ProcessSequence); n != 1 {
		t.Fatalf("processes = %d, want 1", n)
	}
	inv, err := Ingest(doc, Options{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	g := inv.Studies[0].Graph
	if len(g.Edges) != 1 || len(g.Edges[0].Steps) != 0 {
		t.Errorf("edges = %+v, want one edge without steps", g.Edges)
	}
}

func TestIngestErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		kind isaerr.Kind
	}{
		{"not json", `{"studies": [`, isaerr.KindMalformedDocument},
		{"unknown input", `{"studies": [{"materials": {"samples": [{"@id": "#sample/s1", "name": "s1"}]},
			"processSequence": [{"@id": "#p/1", "inputs": [{"@id": "#source/nope"}], "outputs": [{"@id": "#sample/s1"}]}]}]}`,
			isaerr.KindMalformedDocument},
		{"unknown material type", `{"studies": [{"materials": {"otherMaterials": [{"@id": "#m/1", "name": "m1", "type": "Powder"}]}}]}`,
			isaerr.KindMalformedDocument},
		{"broken chain", `{"studies": [{"materials": {"sources": [{"@id": "#source/a", "name": "a"}]},
			"processSequence": [{"@id": "#p/1", "inputs": [{"@id": "#source/a"}], "outputs": [], "nextProcess": {"@id": "#p/9"}}]}]}`,
			isaerr.KindMalformedDocument},
		{"same sample twice with different characteristics", `{"studies": [{"materials": {"samples": [
				{"@id": "#a", "name": "s1", "characteristics": [{"category": {"@id": "#characteristic_category/organism"}, "value": "mouse"}]},
				{"@id": "#b", "name": "s1", "characteristics": [{"category": {"@id": "#characteristic_category/organism"}, "value": "human"}]}]}}]}`,
			isaerr.KindInconsistentNode},
		{"cycle", `{"studies": [{"materials": {"samples": [{"@id": "#sample/a", "name": "a"}, {"@id": "#sample/b", "name": "b"}]},
			"processSequence": [
				{"@id": "#p/1", "inputs": [{"@id": "#sample/a"}], "outputs": [{"@id": "#sample/b"}]},
				{"@id": "#p/2", "inputs": [{"@id": "#sample/b"}], "outputs": [{"@id": "#sample/a"}]}]}]}`,
			isaerr.KindCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Unmarshal([]byte(tt.json))
			if err == nil {
				_, err = Ingest(doc, Options{})
			}
			if !isaerr.IsKind(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestIngestMergesIdenticalMaterials(t *testing.T) {
	doc, err := Unmarshal([]byte(`{"studies": [{"materials": {"samples": [
		{"@id": "#a", "name": "s1", "characteristics": [{"category": {"@id": "#characteristic_category/organism"}, "value": "mouse"}]},
		{"@id": "#b", "name": "s1", "characteristics": [{"category": {"@id": "#characteristic_category/organism"}, "value": " mouse "}]}]}}]}`))
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	inv, err := Ingest(doc, Options{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if n := len(inv.Studies[0].Graph.Nodes); n != 1 {
		t.Errorf("nodes = %d, want 1", n)
	}
}

func TestRoundTripOpenEdge(t *testing.T) {
	tbl, err := tabular.Parse([]byte(testutil.TSV(
		[]string{"Sample Name", "Protocol REF", "Extract Name", "Protocol REF", "Assay Name", "Raw Data File"},
		[]string{"s1", "extraction", "e1", "sequencing", "run-1", ""},
		[]string{"s2", "extraction", "e2", "sequencing", "run-2", "r2.fastq"},
	)), "a_seq.txt")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g, err := graph.BuildTable(tbl, graph.Options{Table: graph.AssayTable})
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}
	inv := &models.Investigation{Studies: []*models.Study{{
		Identifier: "S1",
		Assays:     []*models.Assay{{Filename: "a_seq.txt", Graph: g}},
	}}}

	doc := mustEmit(t, inv)
	var open int
	for _, p := range doc.Studies[0].Assays[0].ProcessSequence {
		if p.Name != nil && *p.Name == "run-1" {
			open++
			if len(p.Outputs) != 0 {
				t.Errorf("run-1 outputs = %+v, want none", p.Outputs)
			}
		}
	}
	if open != 1 {
		t.Fatalf("found %d run-1 processes, want 1", open)
	}

	back, err := Ingest(doc, Options{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	out, err := graph.Tabulate(back.Studies[0].Assays[0].Graph, nil)
	if err != nil {
		t.Fatalf("Tabulate() error = %v", err)
	}
	if diff := cmp.Diff(cells(tbl), cells(out)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitRejectsMaterialsWithoutPlace(t *testing.T) {
	inv := studyOf(t,
		[]string{"Source Name", "Sample Name", "Raw Data File"},
		[]string{"src1", "s1", "r1.fastq"},
	)
	if _, err := Emit(inv, Options{}); !isaerr.IsKind(err, isaerr.KindUnknownHeader) {
		t.Errorf("Emit() error = %v, want UnknownHeader", err)
	}
}

func TestProcessHeader(t *testing.T) {
	tests := []struct {
		protocolType string
		want         string
	}{
		{"mass spectrometry", "MS Assay Name"},
		{"NMR spectroscopy", "NMR Assay Name"},
		{"nucleic acid hybridization", "Hybridization Assay Name"},
		{"data transformation", "Data Transformation Name"},
		{"normalization", "Normalization Name"},
		{"image acquisition", "Scan Name"},
		{"nucleic acid sequencing", "Assay Name"},
		{"", "Assay Name"},
	}
	for _, tt := range tests {
		if got := processHeader(tt.protocolType); got != tt.want {
			t.Errorf("processHeader(%q) = %q, want %q", tt.protocolType, got, tt.want)
		}
	}
}

func TestLastSegment(t *testing.T) {
	if got := lastSegment("#parameter/sample%20collection/oven%20temp"); got != "oven temp" {
		t.Errorf("lastSegment() = %q", got)
	}
	if got := lastSegment("plain"); got != "plain" {
		t.Errorf("lastSegment() = %q", got)
	}
}
