package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	isaerr "github.com/nishad/isakit/internal/errors"
)

func TestObserveConversion(t *testing.T) {
	m := New()
	m.ObserveConversion("tab-to-json", time.Now(), nil)
	m.ObserveConversion("tab-to-json", time.Now(), isaerr.E(isaerr.KindRaggedRow, errors.New("short row")))
	m.ObserveConversion("json-to-tab", time.Now(), nil)

	if got := testutil.ToFloat64(m.Conversions.WithLabelValues("tab-to-json", "ok")); got != 1 {
		t.Errorf("ok conversions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Conversions.WithLabelValues("tab-to-json", "error")); got != 1 {
		t.Errorf("failed conversions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("ragged-row")); got != 1 {
		t.Errorf("ragged-row errors = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveConversion("tab-to-json", time.Now(), nil)
	m.SetCatalogSize(3)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/investigations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/investigations/abc", nil))
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/investigations/{id}", "GET", "404")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}

	m.SetCatalogSize(2)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "isakit_catalog_investigations 2") {
		t.Errorf("metrics output missing catalog gauge:\n%s", rec.Body.String())
	}
}
