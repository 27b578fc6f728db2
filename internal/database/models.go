package database

import (
	"time"
)

// Investigation is one catalogued investigation. Document holds the full
// ISA-JSON rendering; the other columns are lifted from it for listing.
type Investigation struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"` // bundle directory or JSON file it was added from
	StudyCount  int       `json:"study_count"`
	AssayCount  int       `json:"assay_count"`
	Document    string    `json:"-"` // JSON
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Studies []StudySummary `json:"studies,omitempty"`
}

// StudySummary is the per-study row of an investigation.
type StudySummary struct {
	InvestigationID string `json:"investigation_id"`
	Position        int    `json:"position"`
	Identifier      string `json:"identifier"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Filename        string `json:"filename"`

	// JSON arrays of names
	DesignTypes string `json:"design_types"`
	Factors     string `json:"factors"`
	Protocols   string `json:"protocols"`

	SampleCount int            `json:"sample_count"`
	Assays      []AssaySummary `json:"assays,omitempty"`
}

// AssaySummary is the per-assay row of a study.
type AssaySummary struct {
	InvestigationID string `json:"investigation_id"`
	StudyPosition   int    `json:"study_position"`
	Position        int    `json:"position"`
	Filename        string `json:"filename"`
	MeasurementType string `json:"measurement_type"`
	TechnologyType  string `json:"technology_type"`
	Platform        string `json:"platform"`
	DataFileCount   int    `json:"data_file_count"`
}

// DatabaseStats holds database statistics
type DatabaseStats struct {
	TotalInvestigations int       `json:"total_investigations"`
	TotalStudies        int       `json:"total_studies"`
	TotalAssays         int       `json:"total_assays"`
	LastUpdate          time.Time `json:"last_update"`
}

// DatabaseInfo holds database information
type DatabaseInfo struct {
	Path      string           `json:"path"`
	SizeBytes int64            `json:"size_bytes"`
	Tables    map[string]int64 `json:"tables"`
}
