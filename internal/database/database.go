// Package database provides SQLite-backed storage for catalogued
// investigations: the full ISA-JSON document plus study and assay summary
// rows used for listing.
package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	isaerr "github.com/nishad/isakit/internal/errors"
)

// ErrNotFound is returned when an investigation id is not catalogued.
var ErrNotFound = stderrors.New("investigation not found")

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	path string
}

// Options tune the connection.
type Options struct {
	JournalMode string // WAL if empty
	BusyTimeout time.Duration
}

// Initialize creates and configures the database connection
func Initialize(path string) (*DB, error) {
	return Open(path, Options{})
}

// Open opens the catalog at path with the given options, creating tables
// as needed.
func Open(path string, opts Options) (*DB, error) {
	const op isaerr.Op = "database.Open"
	if opts.JournalMode == "" {
		opts.JournalMode = "WAL"
	}
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 10 * time.Second
	}

	if err := ValidateIdentifier(opts.JournalMode); err != nil {
		return nil, isaerr.E(op, isaerr.KindConfig, err)
	}
	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=1&_sync=NORMAL",
		path, opts.JournalMode, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, isaerr.Pos{Path: path}, err, "failed to open database")
	}

	pragmas := []string{
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = 10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, isaerr.E(op, isaerr.KindDatabase, isaerr.Pos{Path: path}, err, "failed to set pragma "+pragma)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, isaerr.E(op, isaerr.KindDatabase, isaerr.Pos{Path: path}, err, "failed to create tables")
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{DB: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS investigations (
		id TEXT PRIMARY KEY,
		identifier TEXT,
		title TEXT,
		description TEXT,
		source TEXT,
		study_count INTEGER,
		assay_count INTEGER,
		document JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS studies (
		investigation_id TEXT NOT NULL REFERENCES investigations(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		identifier TEXT,
		title TEXT,
		description TEXT,
		filename TEXT,
		design_types JSON,
		factors JSON,
		protocols JSON,
		sample_count INTEGER,
		PRIMARY KEY (investigation_id, position)
	);

	CREATE TABLE IF NOT EXISTS assays (
		investigation_id TEXT NOT NULL REFERENCES investigations(id) ON DELETE CASCADE,
		study_position INTEGER NOT NULL,
		position INTEGER NOT NULL,
		filename TEXT,
		measurement_type TEXT,
		technology_type TEXT,
		platform TEXT,
		data_file_count INTEGER,
		PRIMARY KEY (investigation_id, study_position, position)
	);

	CREATE INDEX IF NOT EXISTS idx_investigation_identifier ON investigations(identifier);
	CREATE INDEX IF NOT EXISTS idx_study_identifier ON studies(identifier);
	CREATE INDEX IF NOT EXISTS idx_assay_measurement ON assays(measurement_type);

	CREATE TABLE IF NOT EXISTS statistics (
		table_name TEXT PRIMARY KEY,
		row_count INTEGER,
		last_updated DATETIME
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// InsertInvestigation stores an investigation with its studies and assays
// in one transaction. An existing entry with the same id is replaced.
func (db *DB) InsertInvestigation(ctx context.Context, inv *Investigation) error {
	const op isaerr.Op = "database.InsertInvestigation"
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return isaerr.E(op, isaerr.KindDatabase, err, "failed to start transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"assays", "studies"} {
		// #nosec G201 - table names are from a fixed list, not user input
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE investigation_id = ?", table), inv.ID); err != nil {
			return isaerr.E(op, isaerr.KindDatabase, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM investigations WHERE id = ?`, inv.ID); err != nil {
		return isaerr.E(op, isaerr.KindDatabase, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO investigations (
			id, identifier, title, description, source,
			study_count, assay_count, document, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.Identifier, inv.Title, inv.Description, inv.Source,
		inv.StudyCount, inv.AssayCount, inv.Document, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return isaerr.E(op, isaerr.KindDatabase, err, "failed to insert investigation")
	}

	studyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO studies (
			investigation_id, position, identifier, title, description, filename,
			design_types, factors, protocols, sample_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return isaerr.E(op, isaerr.KindDatabase, err)
	}
	defer studyStmt.Close()

	assayStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assays (
			investigation_id, study_position, position, filename,
			measurement_type, technology_type, platform, data_file_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return isaerr.E(op, isaerr.KindDatabase, err)
	}
	defer assayStmt.Close()

	for i := range inv.Studies {
		s := &inv.Studies[i]
		s.InvestigationID = inv.ID
		_, err := studyStmt.ExecContext(ctx, inv.ID, s.Position, s.Identifier, s.Title, s.Description,
			s.Filename, s.DesignTypes, s.Factors, s.Protocols, s.SampleCount)
		if err != nil {
			return isaerr.E(op, isaerr.KindDatabase, err, "failed to insert study "+s.Identifier)
		}
		for j := range s.Assays {
			a := &s.Assays[j]
			a.InvestigationID = inv.ID
			a.StudyPosition = s.Position
			_, err := assayStmt.ExecContext(ctx, inv.ID, a.StudyPosition, a.Position, a.Filename,
				a.MeasurementType, a.TechnologyType, a.Platform, a.DataFileCount)
			if err != nil {
				return isaerr.E(op, isaerr.KindDatabase, err, "failed to insert assay "+a.Filename)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return isaerr.E(op, isaerr.KindDatabase, err, "failed to commit")
	}
	return nil
}

// GetInvestigation retrieves an investigation with its document, studies
// and assays. It returns an error wrapping ErrNotFound for an unknown id.
func (db *DB) GetInvestigation(ctx context.Context, id string) (*Investigation, error) {
	const op isaerr.Op = "database.GetInvestigation"
	inv := &Investigation{}
	err := db.QueryRowContext(ctx, `
		SELECT id, identifier, title, description, source,
			   study_count, assay_count, document, created_at, updated_at
		FROM investigations WHERE id = ?
	`, id).Scan(&inv.ID, &inv.Identifier, &inv.Title, &inv.Description, &inv.Source,
		&inv.StudyCount, &inv.AssayCount, &inv.Document, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, isaerr.E(op, isaerr.KindDatabase, fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}

	studies, err := db.GetStudies(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Studies = studies
	return inv, nil
}

// GetStudies returns the study rows of an investigation in file order,
// each with its assays.
func (db *DB) GetStudies(ctx context.Context, id string) ([]StudySummary, error) {
	const op isaerr.Op = "database.GetStudies"
	rows, err := db.QueryContext(ctx, `
		SELECT investigation_id, position, identifier, title, description, filename,
			   COALESCE(design_types, '[]'), COALESCE(factors, '[]'), COALESCE(protocols, '[]'),
			   sample_count
		FROM studies WHERE investigation_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	defer rows.Close()

	var studies []StudySummary
	for rows.Next() {
		var s StudySummary
		if err := rows.Scan(&s.InvestigationID, &s.Position, &s.Identifier, &s.Title, &s.Description,
			&s.Filename, &s.DesignTypes, &s.Factors, &s.Protocols, &s.SampleCount); err != nil {
			return nil, isaerr.E(op, isaerr.KindDatabase, err)
		}
		studies = append(studies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	// release the only connection before the next query
	rows.Close()

	assays, err := db.getAssays(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, a := range assays {
		for i := range studies {
			if studies[i].Position == a.StudyPosition {
				studies[i].Assays = append(studies[i].Assays, a)
			}
		}
	}
	return studies, nil
}

func (db *DB) getAssays(ctx context.Context, id string) ([]AssaySummary, error) {
	const op isaerr.Op = "database.getAssays"
	rows, err := db.QueryContext(ctx, `
		SELECT investigation_id, study_position, position, filename,
			   measurement_type, technology_type, platform, data_file_count
		FROM assays WHERE investigation_id = ?
		ORDER BY study_position, position
	`, id)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	defer rows.Close()

	var assays []AssaySummary
	for rows.Next() {
		var a AssaySummary
		if err := rows.Scan(&a.InvestigationID, &a.StudyPosition, &a.Position, &a.Filename,
			&a.MeasurementType, &a.TechnologyType, &a.Platform, &a.DataFileCount); err != nil {
			return nil, isaerr.E(op, isaerr.KindDatabase, err)
		}
		assays = append(assays, a)
	}
	if err := rows.Err(); err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	return assays, nil
}

// ListInvestigations returns investigations without their documents,
// ordered by the given column.
func (db *DB) ListInvestigations(ctx context.Context, orderBy string, offset, limit int) ([]Investigation, error) {
	const op isaerr.Op = "database.ListInvestigations"
	if orderBy == "" {
		orderBy = "created_at"
	}
	column, err := SafeColumnName(orderBy)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindConfig, err)
	}
	if limit <= 0 {
		limit = -1
	}

	// #nosec G201 - column is validated against AllowedColumns
	query := fmt.Sprintf(`
		SELECT id, identifier, title, description, source,
			   study_count, assay_count, created_at, updated_at
		FROM investigations
		ORDER BY %s, id
		LIMIT ? OFFSET ?
	`, column)
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	defer rows.Close()

	var list []Investigation
	for rows.Next() {
		var inv Investigation
		if err := rows.Scan(&inv.ID, &inv.Identifier, &inv.Title, &inv.Description, &inv.Source,
			&inv.StudyCount, &inv.AssayCount, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, isaerr.E(op, isaerr.KindDatabase, err)
		}
		list = append(list, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	return list, nil
}

// GetInvestigationsBatch retrieves a batch of investigations with their
// documents, for rebuilding the search index.
func (db *DB) GetInvestigationsBatch(ctx context.Context, offset, limit int) ([]*Investigation, error) {
	const op isaerr.Op = "database.GetInvestigationsBatch"
	rows, err := db.QueryContext(ctx, `
		SELECT id, identifier, title, description, source, document
		FROM investigations
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	defer rows.Close()

	var list []*Investigation
	for rows.Next() {
		inv := &Investigation{}
		if err := rows.Scan(&inv.ID, &inv.Identifier, &inv.Title, &inv.Description, &inv.Source, &inv.Document); err != nil {
			return nil, isaerr.E(op, isaerr.KindDatabase, err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// DeleteInvestigation removes an investigation and its summary rows.
func (db *DB) DeleteInvestigation(ctx context.Context, id string) error {
	const op isaerr.Op = "database.DeleteInvestigation"
	res, err := db.ExecContext(ctx, `DELETE FROM investigations WHERE id = ?`, id)
	if err != nil {
		return isaerr.E(op, isaerr.KindDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return isaerr.E(op, isaerr.KindDatabase, fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	return nil
}

// CountTable counts rows in a table.
// The table name is validated against the AllowedTables whitelist
// to prevent SQL injection attacks.
func (db *DB) CountTable(table string) (int64, error) {
	safeTable, err := SafeTableName(table)
	if err != nil {
		return 0, fmt.Errorf("CountTable: %w", err)
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", safeTable)
	err = db.QueryRow(query).Scan(&count)
	return count, err
}

// GetStats returns live row counts.
func (db *DB) GetStats() (*DatabaseStats, error) {
	const op isaerr.Op = "database.GetStats"
	stats := &DatabaseStats{}
	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM investigations),
			(SELECT COUNT(*) FROM studies),
			(SELECT COUNT(*) FROM assays)
	`).Scan(&stats.TotalInvestigations, &stats.TotalStudies, &stats.TotalAssays)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}

	var last sql.NullString
	if err := db.QueryRow(`SELECT MAX(updated_at) FROM investigations`).Scan(&last); err != nil {
		return nil, isaerr.E(op, isaerr.KindDatabase, err)
	}
	if last.Valid {
		for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano} {
			if t, err := time.Parse(layout, last.String); err == nil {
				stats.LastUpdate = t
				break
			}
		}
	}
	return stats, nil
}

// UpdateStatistics recalculates the cached statistics table.
// This should be called after batch operations complete
func (db *DB) UpdateStatistics() error {
	tx, err := db.Begin()
	if err != nil {
		return isaerr.E(isaerr.Op("database.UpdateStatistics"), isaerr.KindDatabase, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"investigations", "studies", "assays"} {
		var count int64
		// #nosec G201 - table names are from a fixed list, not user input
		if err := tx.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return isaerr.E(isaerr.Op("database.UpdateStatistics"), isaerr.KindDatabase, err)
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO statistics (table_name, row_count, last_updated)
			VALUES (?, ?, CURRENT_TIMESTAMP)
		`, table, count)
		if err != nil {
			return isaerr.E(isaerr.Op("database.UpdateStatistics"), isaerr.KindDatabase, err,
				"failed to update statistics for "+table)
		}
	}
	return tx.Commit()
}

// GetStatistics retrieves cached statistics from the statistics table
func (db *DB) GetStatistics() (map[string]int64, error) {
	stats := make(map[string]int64)
	rows, err := db.Query(`SELECT table_name, row_count FROM statistics`)
	if err != nil {
		return nil, isaerr.E(isaerr.Op("database.GetStatistics"), isaerr.KindDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string
		var rowCount int64
		if err := rows.Scan(&tableName, &rowCount); err != nil {
			return nil, isaerr.E(isaerr.Op("database.GetStatistics"), isaerr.KindDatabase, err)
		}
		stats[tableName] = rowCount
	}
	return stats, rows.Err()
}

// GetInfo returns database file size and cached table row counts.
func (db *DB) GetInfo() (*DatabaseInfo, error) {
	info := &DatabaseInfo{Path: db.path}
	if db.path != "" {
		if stat, err := os.Stat(db.path); err == nil {
			info.SizeBytes = stat.Size()
		}
	}
	stats, err := db.GetStatistics()
	if err != nil {
		return nil, err
	}
	info.Tables = stats
	return info, nil
}
