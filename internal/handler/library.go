package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/library"
	"github.com/sakif/movieshelf/internal/model"
)

// LibraryHandler exposes the in-memory library.
type LibraryHandler struct {
	library *library.Library
	logger  *slog.Logger
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(lib *library.Library, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{library: lib, logger: logger}
}

// LibraryResponse is the body of GET /api/library. Clients poll and compare
// Version to detect changes.
type LibraryResponse struct {
	Version     uint64                 `json:"version"`
	Collections []model.CollectionView `json:"collections"`
}

// HandleSnapshot returns every collection view.
//
// HTTP: GET /api/library
// QUERY: ?reload=true rebuilds everything from the store first.
func (h *LibraryHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("reload") == "true" {
		if err := h.library.Load(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}

	views, version := h.library.Snapshot()
	writeJSON(w, http.StatusOK, LibraryResponse{Version: version, Collections: views})
}

type patchViewRequest struct {
	Expanded *bool `json:"expanded"`
}

// HandlePatch updates the view state of one collection.
//
// HTTP: PATCH /api/library/{id}
// REQUEST BODY: {"expanded": true}
func (h *LibraryHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var req patchViewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Expanded == nil {
		writeError(w, apperror.ValidationFailed("expanded", "expanded is required"))
		return
	}

	id := chi.URLParam(r, "id")
	if !h.library.SetExpanded(id, *req.Expanded) {
		writeError(w, apperror.NotFound("collection", id))
		return
	}

	view, _ := h.library.Get(id)
	writeJSON(w, http.StatusOK, view)
}
