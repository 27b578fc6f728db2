package testutil

import (
	"path/filepath"
	"testing"

	"github.com/nishad/isakit/internal/database"
)

// TestDB creates a catalog database in a temporary directory.
// It returns the database and a cleanup function.
func TestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	dir, dirCleanup := TempDir(t)
	db, err := database.Initialize(filepath.Join(dir, "catalog.db"))
	if err != nil {
		dirCleanup()
		t.Fatalf("failed to create test database: %v", err)
	}

	return db, func() {
		db.Close()
		dirCleanup()
	}
}
