// Identifier whitelisting for the few queries that splice names into SQL.

package database

import (
	"fmt"
	"regexp"
)

// AllowedTables is the whitelist of valid table names in the catalog.
// Any table name not in this list will be rejected to prevent SQL injection.
var AllowedTables = map[string]bool{
	"investigations": true,
	"studies":        true,
	"assays":         true,
	"statistics":     true,
}

// AllowedColumns is the whitelist of valid column names.
// This is used for dynamic ordering in listing queries.
var AllowedColumns = map[string]bool{
	"id":               true,
	"identifier":       true,
	"title":            true,
	"description":      true,
	"source":           true,
	"created_at":       true,
	"updated_at":       true,
	"filename":         true,
	"measurement_type": true,
	"technology_type":  true,
	"table_name":       true,
	"row_count":        true,
}

// ErrInvalidTableName is returned when a table name is not in the whitelist.
var ErrInvalidTableName = fmt.Errorf("invalid table name")

// ErrInvalidColumnName is returned when a column name is not in the whitelist.
var ErrInvalidColumnName = fmt.Errorf("invalid column name")

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateTableName checks if a table name is in the whitelist.
func ValidateTableName(table string) error {
	if !AllowedTables[table] {
		return fmt.Errorf("%w: %s", ErrInvalidTableName, table)
	}
	return nil
}

// ValidateColumnName checks if a column name is in the whitelist.
func ValidateColumnName(column string) error {
	if !AllowedColumns[column] {
		return fmt.Errorf("%w: %s", ErrInvalidColumnName, column)
	}
	return nil
}

// ValidateIdentifier checks that a string is a plain SQL identifier.
func ValidateIdentifier(identifier string) error {
	if !identifierPattern.MatchString(identifier) {
		return fmt.Errorf("invalid identifier: %q", identifier)
	}
	return nil
}

// SafeTableName returns the table name if valid, or an error.
func SafeTableName(table string) (string, error) {
	if err := ValidateTableName(table); err != nil {
		return "", err
	}
	return table, nil
}

// SafeColumnName returns the column name if valid, or an error.
func SafeColumnName(column string) (string, error) {
	if err := ValidateColumnName(column); err != nil {
		return "", err
	}
	return column, nil
}
