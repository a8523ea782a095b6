package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Hierarchy.
	r.Get("/goals", h.ListGoals)
	r.Get("/projects", h.ListProjects)
	r.Get("/hierarchy/goals/*", h.GetGoalHierarchy)
	r.Get("/hierarchy/projects/*", h.GetProjectHierarchy)
	r.Get("/filetype", h.GetFileType)

	// Index control.
	r.Post("/rescan", h.Rescan)

	// Catalog.
	r.Get("/entities", h.ListEntities)
	r.Get("/stats", h.Stats)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
