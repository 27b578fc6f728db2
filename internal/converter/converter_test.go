package converter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/metrics"
	"github.com/nishad/isakit/internal/testutil"
)

func setupTestConverter(t *testing.T) (*Converter, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return New(Options{Metrics: m}), m
}

func TestTabToJSONThenBack(t *testing.T) {
	conv, m := setupTestConverter(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()

	var buf bytes.Buffer
	if err := conv.TabToJSON(dir, &buf); err != nil {
		t.Fatalf("TabToJSON() error = %v", err)
	}
	files, err := conv.JSONToTab(&buf)
	if err != nil {
		t.Fatalf("JSONToTab() error = %v", err)
	}

	want := testutil.Bundle()
	if diff := cmp.Diff(SortedNames(toBytes(want)), SortedNames(files)); diff != "" {
		t.Fatalf("file names mismatch (-want +got):\n%s", diff)
	}
	for name, content := range want {
		if diff := cmp.Diff(content, string(files[name])); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}

	if got := promtest.ToFloat64(m.Conversions.WithLabelValues(DirectionTabToJSON, "ok")); got != 1 {
		t.Errorf("tab-to-json conversions = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.Conversions.WithLabelValues(DirectionJSONToTab, "ok")); got != 1 {
		t.Errorf("json-to-tab conversions = %v, want 1", got)
	}
}

func toBytes(files map[string]string) map[string][]byte {
	out := make(map[string][]byte, len(files))
	for k, v := range files {
		out[k] = []byte(v)
	}
	return out
}

func TestFileConversions(t *testing.T) {
	conv, _ := setupTestConverter(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()

	out := t.TempDir()
	jsonFile := filepath.Join(out, "investigation.json")
	if err := conv.TabToJSONFile(dir, jsonFile); err != nil {
		t.Fatalf("TabToJSONFile() error = %v", err)
	}
	bundle := filepath.Join(out, "bundle")
	if err := conv.JSONToTabDir(jsonFile, bundle); err != nil {
		t.Fatalf("JSONToTabDir() error = %v", err)
	}
	for name, content := range testutil.Bundle() {
		if got := testutil.ReadFile(t, filepath.Join(bundle, name)); got != content {
			t.Errorf("%s differs after round trip", name)
		}
	}
}

func TestTabToJSONFailureWritesNothing(t *testing.T) {
	conv, m := setupTestConverter(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	testutil.WriteFiles(t, dir, map[string]string{
		"s_study.txt": strings.Replace(testutil.StudyTable, "\tliver2\tliver\t", "\tliver1\tkidney\t", 1),
	})

	out := filepath.Join(t.TempDir(), "out.json")
	err := conv.TabToJSONFile(dir, out)
	if !isaerr.IsKind(err, isaerr.KindInconsistentNode) {
		t.Fatalf("expected InconsistentNode, got %v", err)
	}
	if !isaerr.UserError(err) {
		t.Error("inconsistent node should be a user error")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("output written despite failure: %v", statErr)
	}
	if got := promtest.ToFloat64(m.Errors.WithLabelValues("inconsistent-node")); got != 1 {
		t.Errorf("inconsistent-node errors = %v, want 1", got)
	}
}

func TestJSONToTabMalformed(t *testing.T) {
	conv, _ := setupTestConverter(t)
	_, err := conv.JSONToTab(strings.NewReader("{not json"))
	if !isaerr.IsKind(err, isaerr.KindMalformedDocument) {
		t.Errorf("expected MalformedDocument, got %v", err)
	}
}

func TestJSONToTabDefaultsInvestigationName(t *testing.T) {
	conv, _ := setupTestConverter(t)
	files, err := conv.JSONToTab(strings.NewReader(`{"identifier": "I1", "studies": []}`))
	if err != nil {
		t.Fatalf("JSONToTab() error = %v", err)
	}
	if _, ok := files[DefaultInvestigationFile]; !ok || len(files) != 1 {
		t.Errorf("files = %v", SortedNames(files))
	}
}

func TestCheckBundleReportsEveryTable(t *testing.T) {
	conv, _ := setupTestConverter(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()

	if err := conv.CheckBundle(dir); err != nil {
		t.Fatalf("CheckBundle() on valid bundle = %v", err)
	}

	testutil.WriteFiles(t, dir, map[string]string{
		"s_study.txt":      strings.Replace(testutil.StudyTable, "sample collection", "grinding", 1),
		"a_metabolome.txt": strings.Replace(testutil.MetabolomeTable, "Raw Spectral Data File", "Raw Spectral Data Fiel", 1),
	})
	if err := os.Remove(filepath.Join(dir, "a_transcriptome.txt")); err != nil {
		t.Fatal(err)
	}

	err := conv.CheckBundle(dir)
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("expected *multierror.Error, got %T: %v", err, err)
	}
	if len(merr.Errors) != 3 {
		t.Fatalf("errors = %d, want 3: %v", len(merr.Errors), merr)
	}
	kinds := []isaerr.Kind{isaerr.KindUnresolvedReference, isaerr.KindIO, isaerr.KindUnknownHeader}
	for i, kind := range kinds {
		if !isaerr.IsKind(merr.Errors[i], kind) {
			t.Errorf("error %d = %v, want kind %v", i, merr.Errors[i], kind)
		}
	}
}

func TestCheckBundleMissingInvestigation(t *testing.T) {
	conv, _ := setupTestConverter(t)
	err := conv.CheckBundle(t.TempDir())
	if !isaerr.IsKind(err, isaerr.KindInvestigationMissing) {
		t.Errorf("expected InvestigationMissing, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	if err := os.Rename(filepath.Join(dir, "i_investigation.txt"), filepath.Join(dir, "liver.idf.txt")); err != nil {
		t.Fatal(err)
	}

	if _, err := New(Options{}).LoadBundle(dir); !isaerr.IsKind(err, isaerr.KindInvestigationMissing) {
		t.Errorf("default pattern error = %v, want InvestigationMissing", err)
	}

	conv := New(Options{Pattern: "*.idf.txt", Indent: "\t"})
	var buf bytes.Buffer
	if err := conv.TabToJSON(dir, &buf); err != nil {
		t.Fatalf("TabToJSON() with pattern error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "{\n\t\"") {
		t.Errorf("document not tab indented: %.20q", buf.String())
	}

	testutil.WriteFiles(t, dir, map[string]string{
		"liver.idf.txt": strings.Replace(testutil.InvestigationFile,
			"INVESTIGATION\n", "INVESTIGATION\nInvestigation Colour\tblue\n", 1),
	})
	if err := conv.CheckBundle(dir); err != nil {
		t.Errorf("lenient CheckBundle() error = %v", err)
	}
	strict := New(Options{Pattern: "*.idf.txt", StrictKeys: true})
	if _, err := strict.LoadBundle(dir); !isaerr.IsKind(err, isaerr.KindMalformedSection) {
		t.Errorf("strict LoadBundle() error = %v, want MalformedSection", err)
	}
	if err := strict.CheckBundle(dir); !isaerr.IsKind(err, isaerr.KindMalformedSection) {
		t.Errorf("strict CheckBundle() error = %v, want MalformedSection", err)
	}
}
