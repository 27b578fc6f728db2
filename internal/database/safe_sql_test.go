package database

import (
	"errors"
	"testing"
)

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{"valid investigations", "investigations", false},
		{"valid studies", "studies", false},
		{"valid assays", "assays", false},
		{"valid statistics", "statistics", false},
		{"invalid table", "invalid_table", true},
		{"SQL injection attempt", "studies; DROP TABLE studies;--", true},
		{"empty string", "", true},
		{"table with spaces", "table name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableName(tt.table)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTableName(%q) error = %v, wantErr %v", tt.table, err, tt.wantErr)
			}
			if tt.wantErr && err != nil {
				if !errors.Is(err, ErrInvalidTableName) {
					t.Errorf("expected ErrInvalidTableName, got %v", err)
				}
			}
		})
	}
}

func TestValidateColumnName(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		wantErr bool
	}{
		{"valid identifier", "identifier", false},
		{"valid title", "title", false},
		{"valid created_at", "created_at", false},
		{"valid measurement_type", "measurement_type", false},
		{"document is not sortable", "document", true},
		{"SQL injection attempt", "title; DROP TABLE studies;--", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColumnName(tt.column)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateColumnName(%q) error = %v, wantErr %v", tt.column, err, tt.wantErr)
			}
			if tt.wantErr && err != nil {
				if !errors.Is(err, ErrInvalidColumnName) {
					t.Errorf("expected ErrInvalidColumnName, got %v", err)
				}
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantErr    bool
	}{
		{"journal mode", "WAL", false},
		{"starts with underscore", "_private", false},
		{"alphanumeric", "table123", false},
		{"empty string", "", true},
		{"starts with number", "123table", true},
		{"has spaces", "table name", true},
		{"has semicolon", "table;name", true},
		{"SQL injection", "'; DROP TABLE --", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.identifier)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.identifier, err, tt.wantErr)
			}
		})
	}
}

func TestSafeNames(t *testing.T) {
	if name, err := SafeTableName("assays"); err != nil || name != "assays" {
		t.Errorf("SafeTableName(assays) = %q, %v", name, err)
	}
	if _, err := SafeTableName("runs"); err == nil {
		t.Error("SafeTableName(runs) expected error, got nil")
	}
	if name, err := SafeColumnName("title"); err != nil || name != "title" {
		t.Errorf("SafeColumnName(title) = %q, %v", name, err)
	}
	if _, err := SafeColumnName("invalid"); err == nil {
		t.Error("SafeColumnName(invalid) expected error, got nil")
	}
}
