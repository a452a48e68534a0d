package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/eventbus"
	"github.com/sakif/movieshelf/internal/model"
	"github.com/sakif/movieshelf/internal/repository"
)

// membershipRecord is the stored layout of a membership. created_at is store
// metadata and is not part of the fields.
type membershipRecord struct {
	ID           string `json:"id"`
	CollectionID string `json:"collection_id"`
	MovieID      int    `json:"movie_id"`
	Title        string `json:"title"`
	PosterPath   string `json:"poster_path"`
	VoteAverage  int    `json:"vote_average"`
	ReleaseDate  string `json:"release_date"`
}

// MembershipService saves movies into collections.
//
// THE SAVE FLOW:
//
//	create membership → increment collection count → publish movie_saved
//
// The steps are sequential remote calls with no transaction around them. If
// the increment fails, the membership is deleted again (compensation). If
// that delete fails too, the counter and the memberships disagree and the
// caller gets an apperror.ErrPartial error.
type MembershipService struct {
	store       repository.DocumentStore
	collections *CollectionService
	bus         *eventbus.Bus
	logger      *slog.Logger
	opts        settings
}

// NewMembershipService creates a MembershipService. bus may be nil, in which
// case nothing is published.
func NewMembershipService(
	store repository.DocumentStore,
	collections *CollectionService,
	bus *eventbus.Bus,
	logger *slog.Logger,
	opts ...Option,
) *MembershipService {
	return &MembershipService{
		store:       store,
		collections: collections,
		bus:         bus,
		logger:      logger,
		opts:        applyOptions(opts),
	}
}

// KeyFor returns the collection key stored on memberships of collectionID.
func (s *MembershipService) KeyFor(collectionID string) string {
	return CollectionKey(collectionID, s.opts.keyLength)
}

// SaveMovie stores movie as a member of the collection, bumps the collection
// count and publishes eventbus.EventMovieSaved.
//
// The stored record carries the truncated collection key and the rating
// rounded to the nearest integer. The event carries the untruncated id.
func (s *MembershipService) SaveMovie(ctx context.Context, collectionID string, movie model.MovieInput) (*model.Membership, error) {
	collectionID = strings.TrimSpace(collectionID)
	title := strings.TrimSpace(movie.Title)

	switch {
	case collectionID == "":
		return nil, apperror.ValidationFailed("collectionId", "no collection selected")
	case movie.ID <= 0:
		return nil, apperror.ValidationFailed("id", "movie ID must be positive")
	case title == "":
		return nil, apperror.ValidationFailed("title", "movie title is required")
	}

	rec := membershipRecord{
		ID:           s.opts.newID(),
		CollectionID: s.KeyFor(collectionID),
		MovieID:      movie.ID,
		Title:        title,
		PosterPath:   movie.PosterPath,
		VoteAverage:  roundRating(movie.VoteAverage),
		ReleaseDate:  movie.ReleaseDate,
	}

	// === STEP 1: create the membership ===
	doc, err := s.store.Create(ctx, repository.TableMemberships, rec.ID, rec.fields())
	if err != nil {
		s.logger.Error("failed to save movie",
			slog.String("collectionId", collectionID),
			slog.Int("movieId", movie.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving movie %d: %w", movie.ID, err)
	}

	membership, err := toMembership(doc)
	if err != nil {
		return nil, fmt.Errorf("saving movie %d: %w", movie.ID, err)
	}

	// === STEP 2: increment the counter, compensate on failure ===
	if _, incErr := s.collections.IncrementCount(ctx, collectionID); incErr != nil {
		return nil, s.compensate(ctx, membership, incErr)
	}

	// === STEP 3: notify ===
	if s.bus != nil {
		s.bus.Publish(eventbus.EventMovieSaved, &eventbus.MovieSaved{
			Membership:   *membership,
			CollectionID: collectionID,
		})
	}

	s.logger.Info("movie saved",
		slog.String("id", membership.ID),
		slog.String("collectionId", collectionID),
		slog.String("collectionKey", membership.CollectionKey),
		slog.Int("movieId", membership.MovieID),
	)

	return membership, nil
}

// compensate deletes a membership whose counter increment failed.
func (s *MembershipService) compensate(ctx context.Context, m *model.Membership, incErr error) error {
	// The delete runs even if ctx was cancelled mid-save.
	delErr := s.store.Delete(context.WithoutCancel(ctx), repository.TableMemberships, m.ID)
	if delErr == nil || errors.Is(delErr, apperror.ErrNotFound) {
		s.logger.Warn("movie save rolled back",
			slog.String("id", m.ID),
			slog.String("collectionKey", m.CollectionKey),
			slog.String("error", incErr.Error()),
		)
		return fmt.Errorf("saving movie %d: %w", m.MovieID, incErr)
	}

	s.logger.Error("movie save left membership without counter",
		slog.String("id", m.ID),
		slog.String("collectionKey", m.CollectionKey),
		slog.String("incrementError", incErr.Error()),
		slog.String("error", delErr.Error()),
	)
	return apperror.Partial(
		fmt.Sprintf("membership %s saved but collection count not updated", m.ID),
		errors.Join(incErr, delErr),
	)
}

// ListMovies returns the memberships of collectionID in store order.
//
// The store has no filter, so the whole memberships table is fetched and
// matched on the collection key. On failure it returns an empty slice and an
// error.
func (s *MembershipService) ListMovies(ctx context.Context, collectionID string) ([]model.Membership, error) {
	collectionID = strings.TrimSpace(collectionID)
	if collectionID == "" {
		return []model.Membership{}, apperror.ValidationFailed("collectionId", "no collection selected")
	}

	all, err := s.listAll(ctx)
	if err != nil {
		return []model.Membership{}, err
	}

	key := s.KeyFor(collectionID)
	movies := make([]model.Membership, 0)
	for _, m := range all {
		if m.CollectionKey == key {
			movies = append(movies, m)
		}
	}

	return movies, nil
}

// listAll returns every membership in store order, skipping records that
// fail to decode.
func (s *MembershipService) listAll(ctx context.Context) ([]model.Membership, error) {
	docs, err := s.store.List(ctx, repository.TableMemberships)
	if err != nil {
		s.logger.Error("failed to list memberships", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing memberships: %w", err)
	}

	all := make([]model.Membership, 0, len(docs))
	for i := range docs {
		m, err := toMembership(&docs[i])
		if err != nil {
			s.logger.Error("skipping malformed membership",
				slog.String("id", docs[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		all = append(all, *m)
	}

	return all, nil
}

// roundRating rounds to the nearest integer with halves going up, so 7.5
// becomes 8 and -2.5 becomes -2.
func roundRating(v float64) int {
	return int(math.Floor(v + 0.5))
}

func (r membershipRecord) fields() map[string]any {
	return map[string]any{
		"id":            r.ID,
		"collection_id": r.CollectionID,
		"movie_id":      r.MovieID,
		"title":         r.Title,
		"poster_path":   r.PosterPath,
		"vote_average":  r.VoteAverage,
		"release_date":  r.ReleaseDate,
	}
}

func toMembership(doc *repository.Document) (*model.Membership, error) {
	var rec membershipRecord
	if err := doc.Decode(&rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = doc.ID
	}

	return &model.Membership{
		ID:            rec.ID,
		CollectionKey: rec.CollectionID,
		MovieID:       rec.MovieID,
		Title:         rec.Title,
		PosterPath:    rec.PosterPath,
		VoteAverage:   rec.VoteAverage,
		ReleaseDate:   rec.ReleaseDate,
		CreatedAt:     doc.CreatedAt,
	}, nil
}
