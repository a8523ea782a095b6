package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/telos/internal/apperr"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// entityPath extracts the entity path from the URL wildcard. Supports
// encoded slashes from generated clients (e.g. Goals%2Fhealth.md).
func entityPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListGoals handles GET /api/goals.
//
//	@Summary		List all known goal keys
//	@Tags			hierarchy
//	@Produce		json
//	@Success		200	{object}	KeyListResponse
//	@Security		BearerAuth
//	@Router			/goals [get]
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	keys := h.svc.Goals()
	writeJSON(w, http.StatusOK, KeyListResponse{Keys: keys, Total: len(keys)})
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List all known project keys
//	@Tags			hierarchy
//	@Produce		json
//	@Success		200	{object}	KeyListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	keys := h.svc.Projects()
	writeJSON(w, http.StatusOK, KeyListResponse{Keys: keys, Total: len(keys)})
}

// GetGoalHierarchy handles GET /api/hierarchy/goals/*.
//
//	@Summary		Get a goal's child projects and tasks
//	@Tags			hierarchy
//	@Produce		json
//	@Param			path	path		string	true	"Goal path or key"
//	@Success		200		{object}	GoalHierarchy
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/hierarchy/goals/{path} [get]
func (h *Handler) GetGoalHierarchy(w http.ResponseWriter, r *http.Request) {
	path := entityPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	g, err := h.svc.GoalHierarchy(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("goal hierarchy failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GetProjectHierarchy handles GET /api/hierarchy/projects/*.
//
//	@Summary		Get a project's child tasks
//	@Tags			hierarchy
//	@Produce		json
//	@Param			path	path		string	true	"Project path or key"
//	@Success		200		{object}	ProjectHierarchy
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/hierarchy/projects/{path} [get]
func (h *Handler) GetProjectHierarchy(w http.ResponseWriter, r *http.Request) {
	path := entityPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	p, err := h.svc.ProjectHierarchy(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("project hierarchy failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetFileType handles GET /api/filetype.
//
//	@Summary		Classify a vault path
//	@Tags			hierarchy
//	@Produce		json
//	@Param			path	query		string	true	"Vault-relative path"
//	@Success		200		{object}	FileTypeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/filetype [get]
func (h *Handler) GetFileType(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	kind, tracked := h.svc.Classify(path)
	writeJSON(w, http.StatusOK, FileTypeResponse{Path: path, Kind: kind, Tracked: tracked})
}

// Rescan handles POST /api/rescan.
//
//	@Summary		Rebuild the index caches from the vault
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	RescanResponse
//	@Security		BearerAuth
//	@Router			/rescan [post]
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Rescan(r.Context()); err != nil {
		slog.Error("rescan failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RescanResponse{Status: "completed"})
}

// ListEntities handles GET /api/entities.
//
//	@Summary		List catalog entities with optional kind filter
//	@Tags			catalog
//	@Produce		json
//	@Param			kind	query		string	false	"Entity kind"	Enums(goal, project, task)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	EntityListResponse
//	@Security		BearerAuth
//	@Router			/entities [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	kind := q.Get("kind")

	items, total, err := h.svc.Entities(kind, limit, offset)
	if err != nil {
		slog.Error("list entities failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []EntityItem{}
	}
	writeJSON(w, http.StatusOK, EntityListResponse{Entities: items, Total: total})
}

// Stats handles GET /api/stats.
//
//	@Summary		Entity counts by kind
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Stats()
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Counts: counts})
}
