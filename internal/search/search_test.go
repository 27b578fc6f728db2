package search

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/nishad/isakit/internal/database"
	"github.com/nishad/isakit/internal/investigation"
	"github.com/nishad/isakit/internal/isajson"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/testutil"
)

func loadFixture(t *testing.T) (*models.Investigation, string) {
	t.Helper()
	dir, cleanup := testutil.WriteBundle(t)
	t.Cleanup(cleanup)
	inv, err := investigation.Load(dir, investigation.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return inv, dir
}

var yeastDoc = Doc{
	ID:               "inv-2",
	Identifier:       "INV-YEAST",
	Title:            "Yeast growth under nutrient limitation",
	Factors:          []string{"limiting nutrient"},
	MeasurementTypes: []string{"protein expression profiling"},
	TechnologyTypes:  []string{"mass spectrometry"},
	Organisms:        []string{"Saccharomyces cerevisiae"},
}

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	inv, dir := loadFixture(t)
	if err := idx.BatchIndex([]Doc{NewDoc("inv-1", dir, inv), yeastDoc}); err != nil {
		t.Fatalf("BatchIndex() error = %v", err)
	}
	return idx
}

func TestNewDoc(t *testing.T) {
	inv, dir := loadFixture(t)
	doc := NewDoc("inv-1", dir, inv)

	if doc.Type != DocType || doc.Identifier != "INV-LIVER" || doc.Source != dir {
		t.Errorf("doc header = %+v", doc)
	}
	if !slices.Equal(doc.Organisms, []string{"Mus musculus"}) {
		t.Errorf("Organisms = %v", doc.Organisms)
	}
	if !slices.Equal(doc.Factors, []string{"dose"}) {
		t.Errorf("Factors = %v", doc.Factors)
	}
	if !slices.Equal(doc.MeasurementTypes, []string{"transcription profiling", "metabolite profiling"}) {
		t.Errorf("MeasurementTypes = %v", doc.MeasurementTypes)
	}
	for _, name := range []string{"mouse1", "liver3", "run1.fastq.gz", "metabolites.tsv"} {
		if !slices.Contains(doc.NodeNames, name) {
			t.Errorf("NodeNames missing %s", name)
		}
	}
	if len(doc.Protocols) != 5 {
		t.Errorf("Protocols = %v", doc.Protocols)
	}
}

func TestSearch(t *testing.T) {
	idx := newTestIndex(t)

	tests := []struct {
		name  string
		query string
		opts  SearchOptions
		want  []string
	}{
		{"free text", "liver", SearchOptions{}, []string{"inv-1"}},
		{"field alias", "factor:dose", SearchOptions{}, []string{"inv-1"}},
		{"keyword field", `organism:"Saccharomyces cerevisiae"`, SearchOptions{}, []string{"inv-2"}},
		{"node name", "node:run2.fastq.gz", SearchOptions{}, []string{"inv-1"}},
		{"disjunction", "dose OR yeast", SearchOptions{}, []string{"inv-1", "inv-2"}},
		{"negation", "NOT yeast", SearchOptions{}, []string{"inv-1"}},
		{"filter only", "", SearchOptions{Filters: map[string]string{"technology_types": "mass spectrometry"}}, []string{"inv-1", "inv-2"}},
		{"filter and text", "nutrient", SearchOptions{Filters: map[string]string{"technology_types": "mass spectrometry"}}, []string{"inv-2"}},
		{"fuzzy", "yaest", SearchOptions{Fuzziness: 2}, []string{"inv-2"}},
		{"no match", "zebrafish", SearchOptions{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := idx.Search(tt.query, tt.opts)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var got []string
			for _, h := range res.Hits {
				got = append(got, h.ID)
			}
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("hits = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchFieldsAndFacets(t *testing.T) {
	idx := newTestIndex(t)

	res, err := idx.Search("", SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.TotalHits != 2 {
		t.Fatalf("TotalHits = %d, want 2", res.TotalHits)
	}
	counts := map[string]int{}
	for _, fv := range res.Facets["technology_types"] {
		counts[fv.Value] = fv.Count
	}
	if counts["mass spectrometry"] != 2 || counts["nucleotide sequencing"] != 1 {
		t.Errorf("technology facet = %+v", res.Facets["technology_types"])
	}

	res, err = idx.Search("id:INV-LIVER", SearchOptions{Highlight: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].Title != "Liver dose response" || res.Hits[0].Identifier != "INV-LIVER" {
		t.Errorf("hits = %+v", res.Hits)
	}
}

func TestDeleteAndStats(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Delete("inv-2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	stats, err := idx.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.DocumentCount != 1 {
		t.Errorf("DocumentCount = %d, want 1", stats.DocumentCount)
	}
}

func TestInitBleveIndexReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bleve")
	idx, err := InitBleveIndex(path)
	if err != nil {
		t.Fatalf("InitBleveIndex() error = %v", err)
	}
	if err := idx.IndexDoc(yeastDoc); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx, err = InitBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer idx.Close()
	n, err := idx.GetDocCount()
	if err != nil || n != 1 {
		t.Errorf("GetDocCount() = %d, %v", n, err)
	}
}

func TestQueryParser(t *testing.T) {
	p := NewQueryParser()
	tests := []struct {
		in    string
		check func(query.Query) bool
	}{
		{"", func(q query.Query) bool { _, ok := q.(*query.MatchAllQuery); return ok }},
		{"liver", func(q query.Query) bool { _, ok := q.(*query.QueryStringQuery); return ok }},
		{"liv*", func(q query.Query) bool { _, ok := q.(*query.WildcardQuery); return ok }},
		{`"dose response"`, func(q query.Query) bool { _, ok := q.(*query.MatchPhraseQuery); return ok }},
		{"tech:RNA", func(q query.Query) bool {
			tq, ok := q.(*query.TermQuery)
			return ok && tq.Field() == "technology_types"
		}},
		{"protocol:extraction", func(q query.Query) bool {
			mq, ok := q.(*query.MatchQuery)
			return ok && mq.Field() == "protocols"
		}},
		{"factor:dose liver", func(q query.Query) bool { _, ok := q.(*query.ConjunctionQuery); return ok }},
		{"a OR b", func(q query.Query) bool { _, ok := q.(*query.DisjunctionQuery); return ok }},
		{"a AND NOT b", func(q query.Query) bool { _, ok := q.(*query.BooleanQuery); return ok }},
	}
	for _, tt := range tests {
		q, err := p.ParseAdvancedQuery(tt.in)
		if err != nil {
			t.Errorf("ParseAdvancedQuery(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.check(q) {
			t.Errorf("ParseAdvancedQuery(%q) = %T", tt.in, q)
		}
	}
}

func TestFullSync(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	inv, dir := loadFixture(t)
	data, err := isajson.Marshal(inv, isajson.Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	rows := []*database.Investigation{
		{ID: "good", Identifier: "INV-LIVER", Source: dir, Document: string(data)},
		{ID: "broken", Identifier: "X", Document: "{"},
	}
	for _, r := range rows {
		if err := db.InsertInvestigation(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	n, err := NewSyncer(db, idx, 1, nil).FullSync(ctx)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if n != 1 {
		t.Errorf("indexed %d documents, want 1", n)
	}
	res, err := idx.Search("organism:\"Mus musculus\"", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "good" {
		t.Errorf("hits = %+v", res.Hits)
	}
}
