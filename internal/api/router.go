package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(store Store, sseHandler http.Handler) chi.Router {
	h := NewHandler(store)

	r := chi.NewRouter()

	// Categories.
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Delete("/categories/{name}", h.DeleteCategory)

	// Items.
	r.Get("/categories/{name}/items", h.ListItems)
	r.Post("/categories/{name}/items", h.UploadItem)
	r.Get("/categories/{name}/items/{item}", h.ServeItem)
	r.Get("/categories/{name}/items/{item}/thumbnail", h.ServeThumbnail)

	// Snapshot stream.
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
