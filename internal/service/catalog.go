// Package service composes the catalog database, the search index and the
// converter into the operations behind the CLI catalog commands and the
// HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nishad/isakit/internal/converter"
	"github.com/nishad/isakit/internal/database"
	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/isajson"
	"github.com/nishad/isakit/internal/metrics"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/search"
)

// catalogNamespace derives stable entry ids from source paths, so adding the
// same bundle twice replaces the earlier entry.
var catalogNamespace = uuid.MustParse("5a4d2c0e-8f0b-4c7e-9a55-3b1f1c2e7d10")

// Options configures a CatalogService.
type Options struct {
	DB        *database.DB
	Index     *search.BleveIndex // may be nil: nothing is indexed
	Converter *converter.Converter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Parallelism bounds AddAll. Zero means 4.
	Parallelism int
	// BatchSize is the number of documents per Reindex batch.
	BatchSize int
}

// CatalogService stores converted investigations and keeps the search index
// in step with the database.
type CatalogService struct {
	db          *database.DB
	index       *search.BleveIndex
	conv        *converter.Converter
	metrics     *metrics.Metrics
	logger      *slog.Logger
	parallelism int
	batchSize   int

	// serialises index writes with the database row they mirror
	mu sync.Mutex
}

// NewCatalogService creates a catalog service.
func NewCatalogService(opts Options) *CatalogService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conv := opts.Converter
	if conv == nil {
		conv = converter.New(converter.Options{Logger: logger, Metrics: opts.Metrics})
	}
	p := opts.Parallelism
	if p <= 0 {
		p = 4
	}
	return &CatalogService{
		db:          opts.DB,
		index:       opts.Index,
		conv:        conv,
		metrics:     opts.Metrics,
		logger:      logger,
		parallelism: p,
		batchSize:   opts.BatchSize,
	}
}

// EntryID returns the catalog id of a source path.
func EntryID(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}
	return uuid.NewSHA1(catalogNamespace, []byte(source)).String()
}

// Add loads an ISA-Tab bundle directory or an ISA-JSON file and stores it.
func (s *CatalogService) Add(ctx context.Context, path string) (*database.Investigation, error) {
	const op isaerr.Op = "service.Add"
	info, err := os.Stat(path)
	if err != nil {
		return nil, isaerr.IO(op, path, err)
	}

	var inv *models.Investigation
	if info.IsDir() {
		inv, err = s.conv.LoadBundle(path)
	} else {
		inv, err = s.loadDocument(path)
	}
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	return s.store(ctx, EntryID(path), path, inv)
}

func (s *CatalogService) loadDocument(path string) (*models.Investigation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, isaerr.IO("service.loadDocument", path, err)
	}
	doc, err := isajson.Unmarshal(data)
	if err != nil {
		return nil, isaerr.E(isaerr.Pos{Path: path}, err)
	}
	return isajson.Ingest(doc, isajson.Options{Logger: s.logger})
}

func (s *CatalogService) store(ctx context.Context, id, source string, inv *models.Investigation) (*database.Investigation, error) {
	const op isaerr.Op = "service.store"
	data, err := s.conv.Marshal(inv)
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	row := Summarize(id, source, inv)
	row.Document = string(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.InsertInvestigation(ctx, row); err != nil {
		return nil, err
	}
	if s.index != nil {
		if err := s.index.IndexDoc(search.NewDoc(id, source, inv)); err != nil {
			return nil, err
		}
	}
	s.refreshSize()
	s.logger.Info("catalogued investigation", "id", id, "identifier", row.Identifier, "source", source)
	return row, nil
}

// AddAll adds every path concurrently. The first failure cancels the rest
// and is returned; entries stored before it stay catalogued.
func (s *CatalogService) AddAll(ctx context.Context, paths []string) ([]*database.Investigation, error) {
	out := make([]*database.Investigation, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := s.Add(ctx, path)
			if err != nil {
				return err
			}
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize builds the catalog row of an investigation without its document.
func Summarize(id, source string, inv *models.Investigation) *database.Investigation {
	row := &database.Investigation{
		ID:          id,
		Identifier:  inv.Identifier,
		Title:       inv.Title,
		Description: inv.Description,
		Source:      source,
		StudyCount:  len(inv.Studies),
	}
	for i, st := range inv.Studies {
		var designs, factors, protocols []string
		for _, d := range st.DesignDescriptors {
			designs = append(designs, d.Term)
		}
		for _, f := range st.Factors {
			factors = append(factors, f.Name)
		}
		for _, p := range st.Protocols {
			protocols = append(protocols, p.Name)
		}
		summary := database.StudySummary{
			Position:    i,
			Identifier:  st.Identifier,
			Title:       st.Title,
			Description: st.Description,
			Filename:    st.Filename,
			DesignTypes: jsonList(designs),
			Factors:     jsonList(factors),
			Protocols:   jsonList(protocols),
			SampleCount: countNodes(st.Graph, models.NodeSample),
		}
		for j, a := range st.Assays {
			summary.Assays = append(summary.Assays, database.AssaySummary{
				Position:        j,
				Filename:        a.Filename,
				MeasurementType: a.MeasurementType.Term,
				TechnologyType:  a.TechnologyType.Term,
				Platform:        a.TechnologyPlatform,
				DataFileCount:   countNodes(a.Graph, models.NodeDataFile),
			})
		}
		row.AssayCount += len(st.Assays)
		row.Studies = append(row.Studies, summary)
	}
	return row
}

func countNodes(g *models.Graph, kind models.NodeKind) int {
	if g == nil {
		return 0
	}
	return len(g.NodesOf(kind))
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// List returns catalog entries ordered by orderBy (default created_at).
func (s *CatalogService) List(ctx context.Context, orderBy string, limit, offset int) ([]database.Investigation, error) {
	if orderBy == "" {
		orderBy = "created_at"
	}
	if limit <= 0 {
		limit = 50
	}
	return s.db.ListInvestigations(ctx, orderBy, offset, limit)
}

// Get returns one entry with its studies and assays.
func (s *CatalogService) Get(ctx context.Context, id string) (*database.Investigation, error) {
	return s.db.GetInvestigation(ctx, id)
}

// Studies returns the study summaries of one entry.
func (s *CatalogService) Studies(ctx context.Context, id string) ([]database.StudySummary, error) {
	if _, err := s.db.GetInvestigation(ctx, id); err != nil {
		return nil, err
	}
	return s.db.GetStudies(ctx, id)
}

// Document returns the stored ISA-JSON document of one entry.
func (s *CatalogService) Document(ctx context.Context, id string) ([]byte, error) {
	row, err := s.db.GetInvestigation(ctx, id)
	if err != nil {
		return nil, err
	}
	return []byte(row.Document), nil
}

// Files renders a catalogued investigation back into ISA-Tab files.
func (s *CatalogService) Files(ctx context.Context, id string) (map[string][]byte, error) {
	row, err := s.db.GetInvestigation(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.conv.JSONToTab(strings.NewReader(row.Document))
}

// Export writes a catalogued investigation as an ISA-Tab bundle into
// outputDir and returns the written file names.
func (s *CatalogService) Export(ctx context.Context, id, outputDir string) ([]string, error) {
	const op isaerr.Op = "service.Export"
	files, err := s.Files(ctx, id)
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, isaerr.IO(op, outputDir, err)
	}
	names := converter.SortedNames(files)
	for _, name := range names {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return nil, isaerr.IO(op, path, err)
		}
	}
	return names, nil
}

// Delete removes an entry from the database and the index.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteInvestigation(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Delete(id); err != nil {
			return err
		}
	}
	s.refreshSize()
	return nil
}

// Reindex rebuilds the search index from the stored documents.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, isaerr.E(isaerr.Op("service.Reindex"), isaerr.KindConfig, "no search index configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return search.NewSyncer(s.db, s.index, s.batchSize, s.logger).FullSync(ctx)
}

// Stats reports the size of the catalog and of the index.
func (s *CatalogService) Stats(ctx context.Context) (*StatsResponse, error) {
	stats, err := s.db.GetStats()
	if err != nil {
		return nil, err
	}
	resp := &StatsResponse{
		TotalInvestigations: stats.TotalInvestigations,
		TotalStudies:        stats.TotalStudies,
		TotalAssays:         stats.TotalAssays,
		LastUpdate:          stats.LastUpdate,
	}
	if info, err := s.db.GetInfo(); err == nil {
		resp.DatabaseSize = info.SizeBytes
	}
	if s.index != nil {
		if n, err := s.index.GetDocCount(); err == nil {
			resp.IndexedDocuments = n
		}
	}
	return resp, nil
}

// refreshSize recounts the cached table statistics and publishes the
// catalog size.
func (s *CatalogService) refreshSize() {
	if err := s.db.UpdateStatistics(); err != nil {
		isaerr.IgnoreError(s.logger, err, "statistics refresh")
		return
	}
	counts, err := s.db.GetStatistics()
	if err != nil {
		isaerr.IgnoreError(s.logger, err, "catalog size gauge")
		return
	}
	s.metrics.SetCatalogSize(int(counts["investigations"]))
}

// Health checks that the database answers.
func (s *CatalogService) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return isaerr.E(isaerr.Op("service.Health"), isaerr.KindDatabase, err)
	}
	return nil
}

// Close closes the index. The database belongs to the caller.
func (s *CatalogService) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

// IsNotFound reports whether err is an unknown catalog id.
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
