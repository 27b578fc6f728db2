// Package api serves the catalog and the converters over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nishad/isakit/internal/config"
	"github.com/nishad/isakit/internal/converter"
	"github.com/nishad/isakit/internal/database"
	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/metrics"
	"github.com/nishad/isakit/internal/search"
	"github.com/nishad/isakit/internal/service"
	"github.com/nishad/isakit/internal/validator"
)

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	server    *http.Server
	catalog   *service.CatalogService
	search    *service.SearchService
	converter *converter.Converter
	validator *validator.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	db        *database.DB
	maxBody   int64
}

// Config holds server configuration
type Config struct {
	Host          string
	Port          int
	DatabasePath  string
	IndexPath     string
	JournalMode   string
	SearchLimit   int
	EnableCORS    bool
	EnableMetrics bool
	MaxBodyBytes  int64
	BatchSize     int
	Validator     *validator.Validator // nil selects the embedded schema
	// Tab carries the bundle reading and JSON layout settings; its logger
	// and metrics are filled in by NewServer.
	Tab converter.Options
}

// ConfigFrom builds a server configuration from the loaded settings.
func ConfigFrom(c *config.Config) (*Config, error) {
	cfg := &Config{
		Host:          c.Server.Host,
		Port:          c.Server.Port,
		DatabasePath:  c.Catalog.DBPath,
		IndexPath:     c.Catalog.IndexPath,
		JournalMode:   c.Catalog.JournalMode,
		SearchLimit:   c.Catalog.SearchLimit,
		BatchSize:     c.Catalog.BatchSize,
		EnableCORS:    c.Server.EnableCORS,
		EnableMetrics: c.Server.EnableMetrics,
		MaxBodyBytes:  c.Server.MaxBodyBytes,
		Tab: converter.Options{
			Pattern:    c.Tab.InvestigationGlob,
			StrictKeys: c.Tab.StrictKeys,
			Indent:     c.JSON.Indent,
		},
	}
	if c.Validator.SchemaPath != "" || c.Validator.Strict {
		v, err := validator.NewValidator(validator.ValidationConfig{
			SchemaPath:         c.Validator.SchemaPath,
			ValidateReferences: true,
			StrictMode:         c.Validator.Strict,
		})
		if err != nil {
			return nil, err
		}
		cfg.Validator = v
	}
	return cfg, nil
}

// Deps are the collaborators of a server whose storage is already open.
type Deps struct {
	Catalog   *service.CatalogService
	Search    *service.SearchService
	Converter *converter.Converter
	Validator *validator.Validator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// NewServer opens the catalog database and index named in cfg and creates
// a server over them.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	const op isaerr.Op = "api.NewServer"
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := database.Open(cfg.DatabasePath, database.Options{JournalMode: cfg.JournalMode})
	if err != nil {
		return nil, isaerr.WrapMsg(op, "failed to open database", err)
	}
	index, err := search.InitBleveIndex(cfg.IndexPath)
	if err != nil {
		db.Close()
		return nil, isaerr.WrapMsg(op, "failed to open search index", err)
	}

	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New()
	}
	convOpts := cfg.Tab
	convOpts.Logger, convOpts.Metrics = logger, m
	conv := converter.New(convOpts)
	s := New(cfg, Deps{
		Catalog: service.NewCatalogService(service.Options{
			DB:        db,
			Index:     index,
			Converter: conv,
			Metrics:   m,
			Logger:    logger,
			BatchSize: cfg.BatchSize,
		}),
		Search:    service.NewSearchService(index, cfg.SearchLimit),
		Converter: conv,
		Validator: cfg.Validator,
		Metrics:   m,
		Logger:    logger,
	})
	s.db = db
	if n, err := db.CountTable("investigations"); err == nil {
		m.SetCatalogSize(int(n))
	}
	return s, nil
}

// New creates a server from open collaborators.
func New(cfg *Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	v := deps.Validator
	if v == nil {
		v = validator.DefaultValidator()
	}
	conv := deps.Converter
	if conv == nil {
		conv = converter.New(converter.Options{Logger: logger, Metrics: deps.Metrics})
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 << 20
	}

	s := &Server{
		router:    mux.NewRouter(),
		catalog:   deps.Catalog,
		search:    deps.Search,
		converter: conv,
		validator: v,
		metrics:   deps.Metrics,
		logger:    logger,
		maxBody:   maxBody,
	}

	s.setupRoutes()

	if cfg.EnableCORS {
		s.router.Use(corsMiddleware)
	}
	s.router.Use(s.metrics.Middleware)
	s.router.Use(s.loggingMiddleware)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Catalog endpoints
	api.HandleFunc("/investigations", s.handleListInvestigations).Methods("GET")
	api.HandleFunc("/investigations/{id}", s.handleGetInvestigation).Methods("GET")
	api.HandleFunc("/investigations/{id}", s.handleDeleteInvestigation).Methods("DELETE")
	api.HandleFunc("/investigations/{id}/studies", s.handleGetStudies).Methods("GET")
	api.HandleFunc("/investigations/{id}/document", s.handleGetDocument).Methods("GET")

	// Search endpoints
	api.HandleFunc("/search", s.handleSearch).Methods("GET", "POST")

	// Conversion endpoints
	api.HandleFunc("/convert/json-to-tab", s.handleJSONToTab).Methods("POST")
	api.HandleFunc("/validate", s.handleValidate).Methods("POST")

	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	if s.catalog != nil {
		s.catalog.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Middleware functions

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "uri", r.RequestURI, "duration", time.Since(start))
	})
}

// Helper functions

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encoding JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"status":  status,
	})
}

// writeErr maps an error to its HTTP status: unknown ids are 404, user
// errors 400 and everything else 500.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case service.IsNotFound(err):
		status = http.StatusNotFound
	case isaerr.UserError(err):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "error", err)
	}
	body := map[string]interface{}{
		"error":   true,
		"message": err.Error(),
		"status":  status,
	}
	if kind := isaerr.GetKind(err); kind != isaerr.KindUnknown {
		body["kind"] = kind.String()
	}
	s.writeJSON(w, status, body)
}

// handleRoot returns API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "isakit API",
		"version":     "1.0.0",
		"description": "ISA-Tab and ISA-JSON conversion and catalog",
		"endpoints": map[string]string{
			"investigations": "/api/v1/investigations",
			"search":         "/api/v1/search",
			"json_to_tab":    "/api/v1/convert/json-to-tab",
			"validate":       "/api/v1/validate",
			"stats":          "/api/v1/stats",
			"health":         "/api/v1/health",
		},
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	check := func(name string, svc service.BaseService) {
		if err := svc.Health(ctx); err != nil {
			health["status"] = "unhealthy"
			health[name] = err.Error()
		} else {
			health[name] = "healthy"
		}
	}
	if s.catalog != nil {
		check("catalog_service", s.catalog)
	}
	if s.search != nil {
		check("search_service", s.search)
	}

	status := http.StatusOK
	if health["status"] != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}
