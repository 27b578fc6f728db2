package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nishad/isakit/internal/converter"
	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/service"
)

// searchFilters maps query parameters to keyword fields of the index.
var searchFilters = map[string]string{
	"measurement": "measurement_types",
	"technology":  "technology_types",
	"organism":    "organisms",
}

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// readBody reads a request body of at most s.maxBody bytes.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large or unreadable")
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty request body")
		return nil, false
	}
	return data, true
}

// Catalog handlers

func (s *Server) handleListInvestigations(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 50)
	if limit > 1000 {
		limit = 1000
	}
	offset := intParam(r, "offset", 0)

	list, err := s.catalog.List(r.Context(), r.URL.Query().Get("order"), limit, offset)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"investigations": list,
		"count":          len(list),
		"limit":          limit,
		"offset":         offset,
	})
}

func (s *Server) handleGetInvestigation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteInvestigation(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetStudies(w http.ResponseWriter, r *http.Request) {
	studies, err := s.catalog.Studies(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"studies": studies,
		"count":   len(studies),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.catalog.Document(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// Search handlers

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req service.SearchRequest

	if r.Method == "POST" {
		data, ok := s.readBody(w, r)
		if !ok {
			return
		}
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		q := r.URL.Query()
		req.Query = q.Get("q")
		if req.Query == "" {
			req.Query = q.Get("query")
		}
		req.Limit = intParam(r, "limit", 0)
		req.Offset = intParam(r, "offset", 0)
		req.Fuzzy = q.Get("fuzzy") == "true"
		req.Highlight = q.Get("highlight") == "true"

		for param, field := range searchFilters {
			if v := q.Get(param); v != "" {
				if req.Filters == nil {
					req.Filters = make(map[string]string)
				}
				req.Filters[field] = v
			}
		}
	}

	response, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

// Conversion handlers

// handleJSONToTab converts an ISA-JSON body into the bundle files, returned
// as a map of file name to content.
func (s *Server) handleJSONToTab(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	files, err := s.converter.JSONToTab(bytes.NewReader(data))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make(map[string]string, len(files))
	for name, content := range files {
		out[name] = string(content)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": out,
		"names": converter.SortedNames(files),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	result, err := s.validator.Validate(data)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	status := http.StatusOK
	if !result.IsValid {
		status = http.StatusUnprocessableEntity
		s.logger.Debug("document failed validation", "errors", len(result.Errors),
			"kind", isaerr.KindSchemaViolation.String())
	}
	s.writeJSON(w, status, result)
}
