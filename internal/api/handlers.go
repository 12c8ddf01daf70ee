package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/models"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

// searchLimit bounds the memory items returned by the combined search.
const searchLimit = 50

type projectsResponse struct {
	Projects []string `json:"projects"`
}

type searchResponse struct {
	Entities    []models.Entity     `json:"entities"`
	Relations   []models.Relation   `json:"relations"`
	MemoryItems []models.MemoryItem `json:"memory_items"`
}

type createEntityRequest struct {
	Project      string   `json:"project"`
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	Observations []string `json:"observations"`
}

type addObservationRequest struct {
	Project string `json:"project"`
	Content string `json:"content"`
}

type createRelationRequest struct {
	Project      string `json:"project"`
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relation_type"`
}

type appendMemoryItemRequest struct {
	Project string   `json:"project"`
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Source  string   `json:"source"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectsResponse{Projects: projects})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := s.project(r.URL.Query().Get("project"))
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	resp := searchResponse{
		Entities:    []models.Entity{},
		Relations:   []models.Relation{},
		MemoryItems: []models.MemoryItem{},
	}
	if q == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	g, err := s.store.SearchNodes(ctx, project, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.store.SearchMemoryItems(ctx, project, q, models.ListOptions{Limit: searchLimit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp.Entities = g.Entities
	resp.Relations = g.Relations
	resp.MemoryItems = items
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.ReadGraph(r.Context(), s.project(r.URL.Query().Get("project")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEntityByName(r.Context(), s.project(r.URL.Query().Get("project")), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := s.store.CreateEntities(r.Context(), s.project(req.Project), []models.NewEntity{{
		Name:         req.Name,
		EntityType:   req.EntityType,
		Observations: req.Observations,
	}})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(created) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, created[0])
}

func (s *Server) handleAddObservation(w http.ResponseWriter, r *http.Request) {
	var req addObservationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	added, err := s.store.AddObservations(r.Context(), s.project(req.Project), []models.ObservationBatch{{
		EntityName: r.PathValue("name"),
		Contents:   []string{req.Content},
	}})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(added) == 0 || len(added[0].AddedObservations) == 0 {
		writeErrorCode(w, http.StatusBadRequest, "entity_not_found_or_duplicate")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"added": added[0].AddedObservations})
}

func (s *Server) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if err := s.store.DeleteObservationByID(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleCreateRelation(w http.ResponseWriter, r *http.Request) {
	var req createRelationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.store.CreateRelationDirect(r.Context(), s.project(req.Project), req.From, req.To, req.RelationType)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorCode(w, http.StatusBadRequest, "entities_not_found_or_duplicate")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleDeleteRelation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if err := s.store.DeleteRelationByID(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleListMemoryItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "invalid_offset")
		return
	}

	opts := models.ListOptions{Kind: query.Get("kind"), Limit: limit, Offset: offset}
	project := s.project(query.Get("project"))

	var (
		items []models.MemoryItem
		err   error
	)
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		items, err = s.store.SearchMemoryItems(r.Context(), project, q, opts)
	} else {
		items, err = s.store.ListMemoryItems(r.Context(), project, opts)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAppendMemoryItem(w http.ResponseWriter, r *http.Request) {
	var req appendMemoryItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	item, err := s.store.AppendMemoryItem(r.Context(), s.project(req.Project), models.NewMemoryItem{
		Kind:    req.Kind,
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Source:  req.Source,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleGetMemoryItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "invalid_id")
		return
	}
	item, err := s.store.GetMemoryItem(r.Context(), s.project(r.URL.Query().Get("project")), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteMemoryItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "invalid_id")
		return
	}
	deleted, err := s.store.DeleteMemoryItem(r.Context(), s.project(r.URL.Query().Get("project")), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}
