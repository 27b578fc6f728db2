// Package search maintains a bleve full-text index over catalogued
// investigations.
package search

import (
	"errors"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/models"
)

// DocType is the type field of every indexed document.
const DocType = "investigation"

// BleveIndex wraps the Bleve search index
type BleveIndex struct {
	index bleve.Index
	path  string
}

// InitBleveIndex initializes or opens a Bleve index
func InitBleveIndex(indexPath string) (*BleveIndex, error) {
	const op isaerr.Op = "search.InitBleveIndex"
	index, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(indexPath, createInvestigationMapping())
		if err != nil {
			return nil, isaerr.E(op, isaerr.KindSearch, isaerr.Pos{Path: indexPath}, err, "failed to create index")
		}
	} else if err != nil {
		return nil, isaerr.E(op, isaerr.KindSearch, isaerr.Pos{Path: indexPath}, err, "failed to open index")
	}
	return &BleveIndex{index: index, path: indexPath}, nil
}

// NewMemoryIndex creates an index that lives only in memory.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(createInvestigationMapping())
	if err != nil {
		return nil, isaerr.E(isaerr.Op("search.NewMemoryIndex"), isaerr.KindSearch, err)
	}
	return &BleveIndex{index: index}, nil
}

// Doc is the indexed form of one investigation.
type Doc struct {
	Type              string   `json:"type"`
	ID                string   `json:"id"`
	Identifier        string   `json:"identifier"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Source            string   `json:"source"`
	StudyIdentifiers  []string `json:"study_identifiers"`
	StudyTitles       []string `json:"study_titles"`
	StudyDescriptions []string `json:"study_descriptions"`
	DesignTypes       []string `json:"design_types"`
	Factors           []string `json:"factors"`
	Protocols         []string `json:"protocols"`
	ProtocolTypes     []string `json:"protocol_types"`
	MeasurementTypes  []string `json:"measurement_types"`
	TechnologyTypes   []string `json:"technology_types"`
	Organisms         []string `json:"organisms"`
	NodeNames         []string `json:"node_names"`
}

type stringSet struct {
	list []string
}

func (s *stringSet) add(v string) {
	v = strings.TrimSpace(v)
	if v != "" && !slices.Contains(s.list, v) {
		s.list = append(s.list, v)
	}
}

// NewDoc builds the indexed form of an investigation.
func NewDoc(id, source string, inv *models.Investigation) Doc {
	var studyIDs, titles, descriptions, designs, factors, protocols, ptypes, measurements, techs, organisms, nodes stringSet
	addNodes := func(g *models.Graph) {
		if g == nil {
			return
		}
		for i := range g.Nodes {
			n := &g.Nodes[i]
			nodes.add(n.Name)
			for _, a := range n.Attributes {
				if a.Kind == models.AttrCharacteristic && strings.EqualFold(a.Label, "Organism") {
					organisms.add(a.Value.Term)
				}
			}
		}
	}

	for _, s := range inv.Studies {
		studyIDs.add(s.Identifier)
		titles.add(s.Title)
		descriptions.add(s.Description)
		for _, d := range s.DesignDescriptors {
			designs.add(d.Term)
		}
		for _, f := range s.Factors {
			factors.add(f.Name)
		}
		for _, p := range s.Protocols {
			protocols.add(p.Name)
			ptypes.add(p.Type.Term)
		}
		addNodes(s.Graph)
		for _, a := range s.Assays {
			measurements.add(a.MeasurementType.Term)
			techs.add(a.TechnologyType.Term)
			addNodes(a.Graph)
		}
	}

	return Doc{
		Type:              DocType,
		ID:                id,
		Identifier:        inv.Identifier,
		Title:             inv.Title,
		Description:       inv.Description,
		Source:            source,
		StudyIdentifiers:  studyIDs.list,
		StudyTitles:       titles.list,
		StudyDescriptions: descriptions.list,
		DesignTypes:       designs.list,
		Factors:           factors.list,
		Protocols:         protocols.list,
		ProtocolTypes:     ptypes.list,
		MeasurementTypes:  measurements.list,
		TechnologyTypes:   techs.list,
		Organisms:         organisms.list,
		NodeNames:         nodes.list,
	}
}

// IndexDoc adds or replaces one document.
func (b *BleveIndex) IndexDoc(doc Doc) error {
	doc.Type = DocType
	if err := b.index.Index(doc.ID, doc); err != nil {
		return isaerr.E(isaerr.Op("search.Index"), isaerr.KindSearch, err, "failed to index "+doc.ID)
	}
	return nil
}

// BatchIndex indexes multiple documents in a batch
func (b *BleveIndex) BatchIndex(docs []Doc) error {
	const op isaerr.Op = "search.BatchIndex"
	batch := b.index.NewBatch()
	for _, doc := range docs {
		doc.Type = DocType
		if err := batch.Index(doc.ID, doc); err != nil {
			return isaerr.E(op, isaerr.KindSearch, err, "failed to add document "+doc.ID+" to batch")
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return isaerr.E(op, isaerr.KindSearch, err)
	}
	return nil
}

// Search runs a query. An empty query matches every document.
func (b *BleveIndex) Search(queryStr string, opts SearchOptions) (*SearchResult, error) {
	const op isaerr.Op = "search.Search"
	start := time.Now()

	q, err := b.buildQuery(queryStr, opts)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	req := bleve.NewSearchRequestOptions(q, limit, opts.Offset, false)
	req.Fields = []string{"identifier", "title"}
	facets := opts.Facets
	if facets == nil {
		facets = DefaultFacets
	}
	for _, f := range facets {
		req.AddFacet(f, bleve.NewFacetRequest(f, 10))
	}
	if opts.Highlight {
		req.Highlight = bleve.NewHighlight()
	}

	res, err := b.index.Search(req)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindSearch, err)
	}

	out := &SearchResult{
		Query:     queryStr,
		TotalHits: int(res.Total),
		Hits:      make([]Hit, 0, len(res.Hits)),
		TimeMs:    time.Since(start).Milliseconds(),
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score, Highlights: h.Fragments}
		hit.Identifier, _ = h.Fields["identifier"].(string)
		hit.Title, _ = h.Fields["title"].(string)
		out.Hits = append(out.Hits, hit)
	}
	if len(res.Facets) > 0 {
		out.Facets = make(map[string][]FacetValue, len(res.Facets))
		for name, fr := range res.Facets {
			var values []FacetValue
			if fr.Terms != nil {
				for _, t := range fr.Terms.Terms() {
					values = append(values, FacetValue{Value: t.Term, Count: t.Count})
				}
			}
			out.Facets[name] = values
		}
	}
	return out, nil
}

func (b *BleveIndex) buildQuery(queryStr string, opts SearchOptions) (query.Query, error) {
	var queries []query.Query

	queryStr = strings.TrimSpace(queryStr)
	switch {
	case queryStr == "":
	case opts.Fuzziness > 0 && !strings.ContainsAny(queryStr, " :\"*?"):
		fq := bleve.NewFuzzyQuery(strings.ToLower(queryStr))
		fq.Fuzziness = opts.Fuzziness
		queries = append(queries, fq)
	default:
		q, err := NewQueryParser().ParseAdvancedQuery(queryStr)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	keys := make([]string, 0, len(opts.Filters))
	for field := range opts.Filters {
		keys = append(keys, field)
	}
	slices.Sort(keys)
	for _, field := range keys {
		tq := bleve.NewTermQuery(opts.Filters[field])
		tq.SetField(field)
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery(), nil
	case 1:
		return queries[0], nil
	default:
		return bleve.NewConjunctionQuery(queries...), nil
	}
}

// Close closes the Bleve index
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// GetDocCount returns the number of documents in the index
func (b *BleveIndex) GetDocCount() (uint64, error) {
	return b.index.DocCount()
}

// Delete removes a document from the index
func (b *BleveIndex) Delete(id string) error {
	if err := b.index.Delete(id); err != nil {
		return isaerr.E(isaerr.Op("search.Delete"), isaerr.KindSearch, err)
	}
	return nil
}

// GetStats reports the document count and, for on-disk indexes, the last
// modification time.
func (b *BleveIndex) GetStats() (*IndexStats, error) {
	n, err := b.index.DocCount()
	if err != nil {
		return nil, isaerr.E(isaerr.Op("search.GetStats"), isaerr.KindSearch, err)
	}
	stats := &IndexStats{DocumentCount: n, Path: b.path}
	if b.path != "" {
		if info, err := os.Stat(b.path); err == nil {
			stats.LastModified = info.ModTime()
		}
	}
	return stats, nil
}
