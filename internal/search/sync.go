package search

import (
	"context"
	"log/slog"

	"github.com/nishad/isakit/internal/database"
	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/isajson"
)

// Syncer rebuilds the search index from the catalog database.
type Syncer struct {
	db        *database.DB
	index     *BleveIndex
	batchSize int
	logger    *slog.Logger
}

// NewSyncer creates a new index syncer
func NewSyncer(db *database.DB, index *BleveIndex, batchSize int, logger *slog.Logger) *Syncer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{db: db, index: index, batchSize: batchSize, logger: logger}
}

// FullSync indexes every catalogued investigation. Documents that no longer
// ingest are skipped with a warning; the count of indexed documents is
// returned.
func (s *Syncer) FullSync(ctx context.Context) (int, error) {
	const op isaerr.Op = "search.FullSync"
	total := 0
	for offset := 0; ; offset += s.batchSize {
		if err := ctx.Err(); err != nil {
			return total, isaerr.E(op, isaerr.KindSearch, err)
		}
		rows, err := s.db.GetInvestigationsBatch(ctx, offset, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}

		docs := make([]Doc, 0, len(rows))
		for _, row := range rows {
			doc, err := s.docFor(row)
			if err != nil {
				s.logger.Warn("skipping investigation", "id", row.ID, "error", err)
				continue
			}
			docs = append(docs, doc)
		}
		if err := s.index.BatchIndex(docs); err != nil {
			return total, err
		}
		total += len(docs)
		s.logger.Debug("indexed batch", "offset", offset, "count", len(docs))
	}
	s.logger.Info("search index rebuilt", "documents", total)
	return total, nil
}

func (s *Syncer) docFor(row *database.Investigation) (Doc, error) {
	jd, err := isajson.Unmarshal([]byte(row.Document))
	if err != nil {
		return Doc{}, err
	}
	inv, err := isajson.Ingest(jd, isajson.Options{Logger: s.logger})
	if err != nil {
		return Doc{}, err
	}
	return NewDoc(row.ID, row.Source, inv), nil
}
