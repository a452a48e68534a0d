package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/movieshelf/internal/catalog"
	"github.com/sakif/movieshelf/internal/model"
	"github.com/sakif/movieshelf/internal/service"
)

// CollectionHandler serves collections and their memberships.
//
//	GET  /api/collections               → list
//	POST /api/collections               → create
//	GET  /api/collections/{id}          → one collection
//	PATCH /api/collections/{id}         → rename
//	GET  /api/collections/{id}/movies   → stored memberships
//	POST /api/collections/{id}/movies   → save a movie
//	GET  /api/collections/{id}/view     → reconciled, display-ready view
type CollectionHandler struct {
	collections *service.CollectionService
	memberships *service.MembershipService
	reconciler  *service.Reconciler
	catalog     catalog.Catalog
	logger      *slog.Logger
}

// NewCollectionHandler creates a CollectionHandler. cat may be nil; saving
// then requires the full movie in the request body.
func NewCollectionHandler(
	collections *service.CollectionService,
	memberships *service.MembershipService,
	reconciler *service.Reconciler,
	cat catalog.Catalog,
	logger *slog.Logger,
) *CollectionHandler {
	return &CollectionHandler{
		collections: collections,
		memberships: memberships,
		reconciler:  reconciler,
		catalog:     cat,
		logger:      logger,
	}
}

// HandleList returns every collection.
//
// HTTP: GET /api/collections
func (h *CollectionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	collections, err := h.collections.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

type createCollectionRequest struct {
	Name string `json:"name"`
}

// HandleCreate creates a collection.
//
// HTTP: POST /api/collections
// REQUEST BODY: {"name": "Favorites"}
func (h *CollectionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	collection, err := h.collections.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/collections/"+collection.ID)
	writeJSON(w, http.StatusCreated, collection)
}

// HandleGet returns one collection.
//
// HTTP: GET /api/collections/{id}
func (h *CollectionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	collection, err := h.collections.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collection)
}

// HandleRename renames a collection.
//
// HTTP: PATCH /api/collections/{id}
// REQUEST BODY: {"name": "Watch later"}
func (h *CollectionHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	collection, err := h.collections.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collection)
}

// HandleListMovies returns the stored memberships of a collection.
//
// HTTP: GET /api/collections/{id}/movies
func (h *CollectionHandler) HandleListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.memberships.ListMovies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

// HandleSaveMovie saves a movie into a collection.
//
// HTTP: POST /api/collections/{id}/movies
// REQUEST BODY: a TMDB-shaped movie,
//
//	{"id": 603, "title": "The Matrix", "poster_path": "/x.jpg",
//	 "vote_average": 8.2, "release_date": "1999-03-31"}
//
// With only an id, the rest is fetched from the catalog first.
func (h *CollectionHandler) HandleSaveMovie(w http.ResponseWriter, r *http.Request) {
	var input model.MovieInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(input.Title) == "" && input.ID > 0 && h.catalog != nil {
		details, err := h.catalog.GetMovieDetails(r.Context(), strconv.Itoa(input.ID))
		if err != nil {
			writeError(w, err)
			return
		}
		input = details.Input()
	}

	membership, err := h.memberships.SaveMovie(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

// HandleView rebuilds a collection against the catalog.
//
// HTTP: GET /api/collections/{id}/view
func (h *CollectionHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.reconciler.BuildCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
