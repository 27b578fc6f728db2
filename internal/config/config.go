package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/paths"
)

// Config represents the isakit configuration
type Config struct {
	Tab       TabConfig       `yaml:"tab"`
	JSON      JSONConfig      `yaml:"json"`
	Log       LogConfig       `yaml:"log"`
	SRA       SRAConfig       `yaml:"sra"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Server    ServerConfig    `yaml:"server"`
	Validator ValidatorConfig `yaml:"validator"`
}

// TabConfig controls how ISA-Tab bundles are read
type TabConfig struct {
	InvestigationGlob string `yaml:"investigation_glob"` // i_*.txt
	StrictKeys        bool   `yaml:"strict_keys"`        // fail on unknown investigation keys
}

// JSONConfig controls document output
type JSONConfig struct {
	Indent string `yaml:"indent"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SRAConfig configures the archive conversion collaborator
type SRAConfig struct {
	XSLTProcessor  string `yaml:"xslt_processor"` // saxon jar
	Java           string `yaml:"java"`
	StylesheetsDir string `yaml:"stylesheets_dir"`
	WorkDir        string `yaml:"work_dir"`
	Parallelism    int    `yaml:"parallelism"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CatalogConfig contains SQLite catalog and search index settings
type CatalogConfig struct {
	DBPath      string `yaml:"db_path"`
	IndexPath   string `yaml:"index_path"`
	JournalMode string `yaml:"journal_mode"` // WAL
	BatchSize   int    `yaml:"batch_size"`
	SearchLimit int    `yaml:"search_limit"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	EnableCORS    bool   `yaml:"enable_cors"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`
}

// ValidatorConfig selects the schema used by validate
type ValidatorConfig struct {
	SchemaPath string `yaml:"schema_path"` // empty = embedded schema
	Strict     bool   `yaml:"strict"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Tab: TabConfig{
			InvestigationGlob: "i_*.txt",
		},
		JSON: JSONConfig{
			Indent: "  ",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		SRA: SRAConfig{
			XSLTProcessor:  filepath.Join(paths.GetStylesheetsPath(), "saxon9he.jar"),
			Java:           "java",
			StylesheetsDir: paths.GetStylesheetsPath(),
			WorkDir:        paths.GetWorkPath(),
			Parallelism:    2,
			TimeoutSeconds: 600,
		},
		Catalog: CatalogConfig{
			DBPath:      paths.GetDatabasePath(),
			IndexPath:   paths.GetIndexPath(),
			JournalMode: "WAL",
			BatchSize:   100,
			SearchLimit: 20,
		},
		Server: ServerConfig{
			Host:          "localhost",
			Port:          8080,
			EnableCORS:    true,
			EnableMetrics: true,
			MaxBodyBytes:  64 << 20,
		},
	}
}

// Load loads configuration from a file, then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	const op isaerr.Op = "config.Load"
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, isaerr.E(op, isaerr.KindConfig, isaerr.Pos{Path: path}, err, "failed to read config file")
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, isaerr.E(op, isaerr.KindConfig, isaerr.Pos{Path: path}, err, "failed to parse config file")
		}
	}

	config.applyEnv()

	config.SRA.XSLTProcessor = expandPath(config.SRA.XSLTProcessor)
	config.SRA.StylesheetsDir = expandPath(config.SRA.StylesheetsDir)
	config.SRA.WorkDir = expandPath(config.SRA.WorkDir)
	config.Catalog.DBPath = expandPath(config.Catalog.DBPath)
	config.Catalog.IndexPath = expandPath(config.Catalog.IndexPath)
	config.Validator.SchemaPath = expandPath(config.Validator.SchemaPath)

	if err := config.Validate(); err != nil {
		return nil, isaerr.E(op, isaerr.Pos{Path: path}, err)
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ISAKIT_XSLT_PROCESSOR"); v != "" {
		c.SRA.XSLTProcessor = v
	}
	if v := os.Getenv("ISAKIT_DB_PATH"); v != "" {
		c.Catalog.DBPath = v
	}
	if v := os.Getenv("ISAKIT_INDEX_PATH"); v != "" {
		c.Catalog.IndexPath = v
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	const op isaerr.Op = "config.Validate"
	if _, err := filepath.Match(c.Tab.InvestigationGlob, "i_x.txt"); err != nil || c.Tab.InvestigationGlob == "" {
		return isaerr.Errorf(op, isaerr.KindConfig, isaerr.Pos{}, "invalid investigation glob %q", c.Tab.InvestigationGlob)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return isaerr.Errorf(op, isaerr.KindConfig, isaerr.Pos{}, "unknown log format %q", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.SRA.Parallelism < 1 {
		return isaerr.Errorf(op, isaerr.KindConfig, isaerr.Pos{}, "sra parallelism must be positive, got %d", c.SRA.Parallelism)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return isaerr.Errorf(op, isaerr.KindConfig, isaerr.Pos{}, "invalid server port %d", c.Server.Port)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, isaerr.Errorf("config.ParseLevel", isaerr.KindConfig, isaerr.Pos{}, "unknown log level %q", name)
	}
	return level, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	const op isaerr.Op = "config.Save"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return isaerr.IO(op, filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return isaerr.E(op, isaerr.KindConfig, err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return isaerr.IO(op, path, err)
	}
	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv("ISAKIT_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("isakit.yaml"); err == nil {
		return "isakit.yaml"
	}
	return filepath.Join(paths.GetPaths().ConfigDir, "config.yaml")
}

// EnsureDirectories creates the directories the catalog and the SRA
// collaborator write into.
func (c *Config) EnsureDirectories() error {
	if err := paths.EnsureDirectories(); err != nil {
		return isaerr.E(isaerr.Op("config.EnsureDirectories"), isaerr.KindIO, err)
	}
	dirs := []string{
		filepath.Dir(c.Catalog.DBPath),
		filepath.Dir(c.Catalog.IndexPath),
		c.SRA.WorkDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return isaerr.IO("config.EnsureDirectories", dir, err)
		}
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}

	return path
}

// NewLogger builds the logger described by the log section, writing to w.
func (c *Config) NewLogger(w *os.File) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
