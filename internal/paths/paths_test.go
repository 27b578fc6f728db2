package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetPaths(t *testing.T) {
	p := GetPaths()

	if p.ConfigDir == "" {
		t.Error("ConfigDir should not be empty")
	}
	if p.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if p.CacheDir == "" {
		t.Error("CacheDir should not be empty")
	}

	if !strings.Contains(p.ConfigDir, "isakit") {
		t.Errorf("ConfigDir should contain 'isakit', got %q", p.ConfigDir)
	}
	if !strings.Contains(p.DataDir, "isakit") {
		t.Errorf("DataDir should contain 'isakit', got %q", p.DataDir)
	}
}

func TestGetPathsWithAppEnv(t *testing.T) {
	t.Setenv("ISAKIT_CONFIG_HOME", "/custom/config")
	t.Setenv("ISAKIT_DATA_HOME", "/custom/data")
	t.Setenv("ISAKIT_CACHE_HOME", "/custom/cache")

	p := GetPaths()

	if p.ConfigDir != "/custom/config" {
		t.Errorf("expected ConfigDir '/custom/config', got %q", p.ConfigDir)
	}
	if p.DataDir != "/custom/data" {
		t.Errorf("expected DataDir '/custom/data', got %q", p.DataDir)
	}
	if p.CacheDir != "/custom/cache" {
		t.Errorf("expected CacheDir '/custom/cache', got %q", p.CacheDir)
	}
}

func TestGetPathsWithXDGEnv(t *testing.T) {
	t.Setenv("ISAKIT_CONFIG_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")

	p := GetPaths()
	if p.ConfigDir != "/xdg/config/isakit" {
		t.Errorf("expected ConfigDir '/xdg/config/isakit', got %q", p.ConfigDir)
	}
}

func TestGetDatabasePath(t *testing.T) {
	t.Setenv("ISAKIT_DB_PATH", "")
	path := GetDatabasePath()
	if !strings.HasSuffix(path, "catalog.db") {
		t.Errorf("expected path to end with 'catalog.db', got %q", path)
	}

	t.Setenv("ISAKIT_DB_PATH", "/custom/path/custom.db")
	if got := GetDatabasePath(); got != "/custom/path/custom.db" {
		t.Errorf("expected '/custom/path/custom.db', got %q", got)
	}
}

func TestGetIndexPath(t *testing.T) {
	t.Setenv("ISAKIT_INDEX_PATH", "")
	t.Setenv("ISAKIT_DB_PATH", "/data/project/catalog.db")
	if got := GetIndexPath(); got != "/data/project/catalog.bleve" {
		t.Errorf("expected index next to database, got %q", got)
	}

	t.Setenv("ISAKIT_INDEX_PATH", "/elsewhere/idx.bleve")
	if got := GetIndexPath(); got != "/elsewhere/idx.bleve" {
		t.Errorf("expected '/elsewhere/idx.bleve', got %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("ISAKIT_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("ISAKIT_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("ISAKIT_CACHE_HOME", filepath.Join(tmp, "cache"))

	if err := EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{"config", "data", "cache", filepath.Join("cache", "work")} {
		if info, err := os.Stat(filepath.Join(tmp, dir)); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", dir)
		}
	}
}
