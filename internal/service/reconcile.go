package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/movieshelf/internal/catalog"
	"github.com/sakif/movieshelf/internal/model"
)

// Reconciler rebuilds display-ready collections from the stored memberships
// and live catalog data.
//
// Each membership is looked up in the catalog on its own. A failed lookup
// falls back to the snapshot saved with the membership, so one bad item never
// aborts the rebuild. Movies keep the order the store returned them in.
type Reconciler struct {
	collections *CollectionService
	memberships *MembershipService
	catalog     catalog.Catalog
	logger      *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	collections *CollectionService,
	memberships *MembershipService,
	cat catalog.Catalog,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		collections: collections,
		memberships: memberships,
		catalog:     cat,
		logger:      logger,
	}
}

// BuildCollection rebuilds one collection.
func (r *Reconciler) BuildCollection(ctx context.Context, collectionID string) (*model.CollectionView, error) {
	collection, err := r.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("building collection %s: %w", collectionID, err)
	}

	members, err := r.memberships.ListMovies(ctx, collection.ID)
	if err != nil {
		return nil, fmt.Errorf("building collection %s: %w", collectionID, err)
	}

	view := r.view(ctx, collection, members)
	return &view, nil
}

// BuildAll rebuilds every collection, in store order. The memberships table
// is read once and grouped by collection key.
func (r *Reconciler) BuildAll(ctx context.Context) ([]model.CollectionView, error) {
	collections, err := r.collections.List(ctx)
	if err != nil {
		return []model.CollectionView{}, fmt.Errorf("building collections: %w", err)
	}

	all, err := r.memberships.listAll(ctx)
	if err != nil {
		return []model.CollectionView{}, fmt.Errorf("building collections: %w", err)
	}

	byKey := make(map[string][]model.Membership)
	for _, m := range all {
		byKey[m.CollectionKey] = append(byKey[m.CollectionKey], m)
	}

	views := make([]model.CollectionView, 0, len(collections))
	for i := range collections {
		members := byKey[r.memberships.KeyFor(collections[i].ID)]
		views = append(views, r.view(ctx, &collections[i], members))
	}

	return views, nil
}

func (r *Reconciler) view(ctx context.Context, c *model.Collection, members []model.Membership) model.CollectionView {
	movies := make([]model.DisplayMovie, 0, len(members))
	for _, m := range members {
		movies = append(movies, r.resolve(ctx, m))
	}

	return model.CollectionView{
		ID:     c.ID,
		Name:   c.Name,
		Count:  c.Count,
		Movies: movies,
	}
}

// resolve merges one membership with its catalog entry, or falls back to the
// membership's snapshot.
func (r *Reconciler) resolve(ctx context.Context, m model.Membership) model.DisplayMovie {
	if r.catalog != nil {
		details, err := r.catalog.GetMovieDetails(ctx, strconv.Itoa(m.MovieID))
		if err == nil {
			return model.DisplayMovie{
				ID:          details.ID,
				Title:       details.Title,
				PosterPath:  details.PosterPath,
				VoteAverage: details.VoteAverage,
				ReleaseDate: details.ReleaseDate,
				Source:      model.SourceCatalog,
			}
		}
		r.logger.Warn("catalog lookup failed, using saved snapshot",
			slog.String("membershipId", m.ID),
			slog.Int("movieId", m.MovieID),
			slog.String("error", err.Error()),
		)
	}

	return model.DisplayMovie{
		ID:          m.MovieID,
		Title:       m.Title,
		PosterPath:  m.PosterPath,
		VoteAverage: float64(m.VoteAverage),
		ReleaseDate: m.ReleaseDate,
		Source:      model.SourceSnapshot,
	}
}
