package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/protasker/internal/annotationservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *annotationservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tree.
	r.Get("/anchors", h.ListAnchors)
	r.Get("/tree", h.Tree)
	r.Get("/tree/children", h.TreeChildren)

	// Annotations.
	r.Post("/annotations", h.CreateAnnotation)
	r.Get("/annotations/{collection}/{id}", h.GetAnnotation)
	r.Put("/annotations/{collection}/{id}", h.EditAnnotation)
	r.Put("/annotations/{collection}/{id}/deadline", h.SetDeadline)
	r.Delete("/annotations/{collection}/{id}", h.DeleteAnnotation)
	r.Post("/lines", h.CreateLineAnnotation)
	r.Get("/lines", h.LineAnnotations)

	// Checklists.
	r.Post("/checklists/{id}/items", h.AddItem)
	r.Post("/checklists/{id}/items/toggle", h.ToggleItem)
	r.Delete("/checklists/{id}/items", h.RemoveItem)
	r.Get("/checklists/{id}/progress", h.Progress)

	// Search and filter.
	r.Get("/search", h.Search)
	r.Get("/search/fulltext", h.FullText)
	r.Get("/filter", h.Filter)
	r.Get("/view", h.ViewState)
	r.Post("/view/reset", h.ResetView)

	// Bulk removal.
	r.Delete("/anchors/{collection}", h.ClearAnchor)
	r.Delete("/store", h.ClearAll)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
