package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/catalog"
)

// MovieHandler proxies catalog lookups.
type MovieHandler struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewMovieHandler creates a MovieHandler. cat may be nil when no catalog
// credentials are configured.
func NewMovieHandler(cat catalog.Catalog, logger *slog.Logger) *MovieHandler {
	return &MovieHandler{catalog: cat, logger: logger}
}

// HandleGet returns the catalog details of one movie.
//
// HTTP: GET /api/movies/{id}
func (h *MovieHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, apperror.Unavailable("catalog", nil))
		return
	}

	details, err := h.catalog.GetMovieDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
