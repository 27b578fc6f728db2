package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// GetPaths returns all base paths respecting environment variables
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("ISAKIT_CONFIG_HOME", "XDG_CONFIG_HOME", ".config", "isakit"),
		DataDir:   getDir("ISAKIT_DATA_HOME", "XDG_DATA_HOME", ".local/share", "isakit"),
		CacheDir:  getDir("ISAKIT_CACHE_HOME", "XDG_CACHE_HOME", ".cache", "isakit"),
	}
}

func getDir(appEnv, xdgEnv, defaultBase, appName string) string {
	// 1. Check isakit-specific env
	if dir := os.Getenv(appEnv); dir != "" {
		return dir
	}

	// 2. Check XDG env
	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}

	// 3. Use default
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetDatabasePath returns the path to the catalog database
func GetDatabasePath() string {
	if path := os.Getenv("ISAKIT_DB_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().DataDir, "catalog.db")
}

// GetIndexPath returns the path to the search index, next to the database
// unless ISAKIT_INDEX_PATH says otherwise.
func GetIndexPath() string {
	if path := os.Getenv("ISAKIT_INDEX_PATH"); path != "" {
		return path
	}
	dbPath := GetDatabasePath()
	return strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".bleve"
}

// GetStylesheetsPath returns the directory holding the SRA stylesheets.
func GetStylesheetsPath() string {
	return filepath.Join(GetPaths().DataDir, "sra")
}

// GetWorkPath returns the parent of per-accession work directories.
func GetWorkPath() string {
	return filepath.Join(GetPaths().CacheDir, "work")
}

// EnsureDirectories creates all necessary directories
func EnsureDirectories() error {
	paths := GetPaths()
	dirs := []string{
		paths.ConfigDir,
		paths.DataDir,
		paths.CacheDir,
		GetWorkPath(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
