package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nishad/isakit/internal/converter"
	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/metrics"
	"github.com/nishad/isakit/internal/search"
	"github.com/nishad/isakit/internal/testutil"
)

func setupTestCatalog(t *testing.T) (*CatalogService, *metrics.Metrics) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	index, err := search.NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex() error = %v", err)
	}
	m := metrics.New()
	svc := NewCatalogService(Options{DB: db, Index: index, Metrics: m})
	t.Cleanup(func() { svc.Close() })
	return svc, m
}

func TestAddBundle(t *testing.T) {
	svc, m := setupTestCatalog(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	ctx := context.Background()

	row, err := svc.Add(ctx, dir)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if row.ID != EntryID(dir) {
		t.Errorf("ID = %s, want %s", row.ID, EntryID(dir))
	}
	if row.Identifier != "INV-LIVER" || row.StudyCount != 1 || row.AssayCount != 2 {
		t.Errorf("row = %+v", row)
	}
	if got := promtest.ToFloat64(m.CatalogSize); got != 1 {
		t.Errorf("catalog size gauge = %v, want 1", got)
	}

	got, err := svc.Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Studies) != 1 {
		t.Fatalf("studies = %d, want 1", len(got.Studies))
	}
	st := got.Studies[0]
	if st.Identifier != "S-LIVER" || st.SampleCount != 3 || st.Factors != `["dose"]` {
		t.Errorf("study summary = %+v", st)
	}
	var assays [][2]any
	for _, a := range st.Assays {
		assays = append(assays, [2]any{a.Filename, a.DataFileCount})
	}
	want := [][2]any{{"a_transcriptome.txt", 3}, {"a_metabolome.txt", 3}}
	if diff := cmp.Diff(want, assays); diff != "" {
		t.Errorf("assays mismatch (-want +got):\n%s", diff)
	}

	// adding the same source again replaces the entry
	if _, err := svc.Add(ctx, dir); err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	list, err := svc.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() = %d entries, want 1", len(list))
	}
}

func TestAddDocumentAndExport(t *testing.T) {
	svc, _ := setupTestCatalog(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	ctx := context.Background()

	jsonPath := filepath.Join(t.TempDir(), "liver.json")
	conv := converter.New(converter.Options{})
	if err := conv.TabToJSONFile(dir, jsonPath); err != nil {
		t.Fatalf("TabToJSONFile() error = %v", err)
	}

	row, err := svc.Add(ctx, jsonPath)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if row.Source != jsonPath || row.AssayCount != 2 {
		t.Errorf("row = %+v", row)
	}

	out := filepath.Join(t.TempDir(), "bundle")
	names, err := svc.Export(ctx, row.ID, out)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	wantNames := []string{"a_metabolome.txt", "a_transcriptome.txt", "i_investigation.txt", "s_study.txt"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("exported files mismatch (-want +got):\n%s", diff)
	}
	for name, content := range testutil.Bundle() {
		got := testutil.ReadFile(t, filepath.Join(out, name))
		if got != content {
			t.Errorf("%s differs after catalog round trip", name)
		}
	}
}

func TestAddAll(t *testing.T) {
	svc, _ := setupTestCatalog(t)
	ctx := context.Background()

	var dirs []string
	for i := 0; i < 3; i++ {
		dir, cleanup := testutil.WriteBundle(t)
		t.Cleanup(cleanup)
		dirs = append(dirs, dir)
	}
	rows, err := svc.AddAll(ctx, dirs)
	if err != nil {
		t.Fatalf("AddAll() error = %v", err)
	}
	for i, row := range rows {
		if row == nil || row.Source != dirs[i] {
			t.Errorf("rows[%d] = %+v", i, row)
		}
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalInvestigations != 3 || stats.TotalAssays != 6 || stats.IndexedDocuments != 3 {
		t.Errorf("stats = %+v", stats)
	}

	_, err = svc.AddAll(ctx, append(dirs, filepath.Join(t.TempDir(), "missing")))
	if !isaerr.IsKind(err, isaerr.KindIO) {
		t.Errorf("AddAll() with a missing path error = %v, want IO error", err)
	}
}

func TestAddRejectsBrokenInput(t *testing.T) {
	svc, _ := setupTestCatalog(t)
	ctx := context.Background()

	bad, cleanup := testutil.TempFile(t, "bad.json", "{")
	defer cleanup()
	if _, err := svc.Add(ctx, bad); !isaerr.IsKind(err, isaerr.KindMalformedDocument) {
		t.Errorf("Add(bad json) error = %v", err)
	}

	empty := t.TempDir()
	if _, err := svc.Add(ctx, empty); !isaerr.IsKind(err, isaerr.KindInvestigationMissing) {
		t.Errorf("Add(empty dir) error = %v", err)
	}

	list, err := svc.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("failed adds left %d entries", len(list))
	}
}

func TestDeleteAndReindex(t *testing.T) {
	svc, m := setupTestCatalog(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	ctx := context.Background()

	row, err := svc.Add(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	searcher := NewSearchService(svc.index, 0)

	n, err := svc.Reindex(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Reindex() = %d, %v", n, err)
	}
	resp, err := searcher.Search(ctx, &SearchRequest{Query: "factor:dose"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.TotalResults != 1 || resp.Results[0].ID != row.ID {
		t.Errorf("search after reindex = %+v", resp)
	}

	if err := svc.Delete(ctx, row.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, row.ID); !IsNotFound(err) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
	if err := svc.Delete(ctx, row.ID); !IsNotFound(err) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
	if got := promtest.ToFloat64(m.CatalogSize); got != 0 {
		t.Errorf("catalog size gauge = %v, want 0", got)
	}
	resp, err = searcher.Search(ctx, &SearchRequest{Query: "liver"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.TotalResults != 0 {
		t.Errorf("deleted entry still searchable: %+v", resp.Results)
	}
}

func TestSearchService(t *testing.T) {
	svc, _ := setupTestCatalog(t)
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	ctx := context.Background()
	if _, err := svc.Add(ctx, dir); err != nil {
		t.Fatal(err)
	}
	searcher := NewSearchService(svc.index, 5)

	tests := []struct {
		name string
		req  SearchRequest
		hits int
	}{
		{"title", SearchRequest{Query: "liver"}, 1},
		{"organism", SearchRequest{Query: `organism:"Mus musculus"`}, 1},
		{"filter", SearchRequest{Filters: map[string]string{"measurement_types": "metabolite profiling"}}, 1},
		{"fuzzy", SearchRequest{Query: "livr", Fuzzy: true}, 1},
		{"miss", SearchRequest{Query: "zebrafish"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := searcher.Search(ctx, &tt.req)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if resp.TotalResults != tt.hits {
				t.Errorf("TotalResults = %d, want %d", resp.TotalResults, tt.hits)
			}
		})
	}

	resp, err := searcher.Search(ctx, &SearchRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var organisms []string
	for _, f := range resp.Facets["organisms"] {
		organisms = append(organisms, f.Name)
	}
	if diff := cmp.Diff([]string{"Mus musculus"}, organisms); diff != "" {
		t.Errorf("organism facet mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewSearchService(nil, 0).Search(ctx, &SearchRequest{}); !isaerr.IsKind(err, isaerr.KindConfig) {
		t.Errorf("Search() without index error = %v", err)
	}
}

func TestHealth(t *testing.T) {
	svc, _ := setupTestCatalog(t)
	if err := svc.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
	if err := NewSearchService(svc.index, 0).Health(context.Background()); err != nil {
		t.Errorf("search Health() error = %v", err)
	}
}

func TestEntryIDStable(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	rel, err := filepath.Rel(wd, dir)
	if err != nil {
		t.Skip("temp dir not reachable from working directory")
	}
	if EntryID(rel) != EntryID(dir) {
		t.Errorf("relative and absolute paths give different ids")
	}
	if EntryID(dir) == EntryID(filepath.Join(dir, "other")) {
		t.Errorf("different sources share an id")
	}
}
