// Package api serves the JSON REST surface over the store and mounts the
// MCP transport next to it.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/observe"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/session"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

// Options configures the HTTP surface.
type Options struct {
	// DefaultProject is used when a request names no project.
	DefaultProject string
	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
}

// Server routes REST requests to the store.
type Server struct {
	store   *storage.Store
	obs     *observe.Observer
	opts    Options
	mux     *http.ServeMux
	handler http.Handler
}

// New creates the server and registers its routes.
func New(store *storage.Store, obs *observe.Observer, opts Options) *Server {
	s := &Server{
		store: store,
		obs:   obs,
		opts:  opts,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	s.handler = s.middleware(s.mux)
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/projects", s.handleProjects)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/graph", s.handleGraph)
	s.mux.HandleFunc("GET /api/entity/{name}", s.handleGetEntity)
	s.mux.HandleFunc("POST /api/entity", s.handleCreateEntity)
	s.mux.HandleFunc("POST /api/entity/{name}/observations", s.handleAddObservation)
	s.mux.HandleFunc("DELETE /api/observation/{id}", s.handleDeleteObservation)
	s.mux.HandleFunc("POST /api/relation", s.handleCreateRelation)
	s.mux.HandleFunc("DELETE /api/relation/{id}", s.handleDeleteRelation)
	s.mux.HandleFunc("GET /api/memory-items", s.handleListMemoryItems)
	s.mux.HandleFunc("POST /api/memory-items", s.handleAppendMemoryItem)
	s.mux.HandleFunc("GET /api/memory-items/{id}", s.handleGetMemoryItem)
	s.mux.HandleFunc("DELETE /api/memory-items/{id}", s.handleDeleteMemoryItem)
	s.mux.HandleFunc("/api/", s.handleNotFound)

	if s.opts.MCP != nil {
		s.mux.Handle("/mcp", s.opts.MCP)
	}
}

// ServeHTTP implements http.Handler with request ids, tracing and access
// logging around the routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) project(explicit string) string {
	return session.Resolve(explicit, "", s.opts.DefaultProject)
}

// ── Helpers ─────────────────────────────────────────────

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code})
}

// writeError maps store errors to status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalid):
		writeErrorCode(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found")
	default:
		s.obs.Log().Error().
			Str("path", r.URL.Path).
			Str("request_id", requestID(r.Context())).
			Err(err).
			Msg("request failed")
		writeErrorCode(w, http.StatusInternalServerError, "internal_error")
	}
}

// decodeBody reads a JSON request body into v. On failure it writes the
// error response and reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeErrorCode(w, http.StatusRequestEntityTooLarge, "body_too_large")
		return false
	}
	writeErrorCode(w, http.StatusBadRequest, "invalid_json")
	return false
}

const maxBodyBytes = 5 << 20

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorCode(w, http.StatusNotFound, "not_found")
}
