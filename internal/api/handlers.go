// Package api implements the mldataset REST API using chi.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mldataset/internal/apperr"
	"github.com/starford/mldataset/internal/models"
)

// Store is the part of the category store the API needs.
type Store interface {
	Current() (models.Snapshot, bool)
	EnsureCategory(name string) (bool, error)
	DeleteCategory(name string) error
	AddItem(item models.FileItem, category string) error
	Items(category string) ([]models.ItemMetadata, error)
	ReadItem(category, name string) ([]byte, error)
}

// Handler holds API route handlers.
type Handler struct {
	store Store
}

// NewHandler creates a new Handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// pathParam returns a decoded chi URL parameter.
// Supports encoded names from clients (e.g. My%20Cats).
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// storeError maps store errors onto HTTP statuses.
func storeError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("store unavailable"))
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error(msg, append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListCategories handles GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	snap, loaded := h.store.Current()
	if !loaded {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"loaded":     false,
			"categories": nil,
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CreateCategory handles POST /api/categories.
// Answers 201 when the directory was created and 200 when it already existed.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	created, err := h.store.EnsureCategory(req.Name)
	if err != nil {
		storeError(w, "create category failed", err, slog.String("name", req.Name))
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, models.NewCategory(req.Name))
}

// DeleteCategory handles DELETE /api/categories/{name}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if err := h.store.DeleteCategory(name); err != nil {
		storeError(w, "delete category failed", err, slog.String("name", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /api/categories/{name}/items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	items, err := h.store.Items(name)
	if err != nil {
		storeError(w, "list items failed", err, slog.String("name", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": name,
		"items":    items,
	})
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
