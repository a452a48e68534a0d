package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/model"
	"github.com/sakif/movieshelf/internal/repository"
)

// MaxCollectionNameLength is the longest accepted collection name, in bytes.
const MaxCollectionNameLength = 100

// collectionRecord is the stored layout of a collection.
type collectionRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CollectionService manages collections and their denormalized counters.
type CollectionService struct {
	store  repository.DocumentStore
	logger *slog.Logger
	opts   settings
}

// NewCollectionService creates a CollectionService.
func NewCollectionService(store repository.DocumentStore, logger *slog.Logger, opts ...Option) *CollectionService {
	return &CollectionService{
		store:  store,
		logger: logger,
		opts:   applyOptions(opts),
	}
}

// List returns every collection in store order. On failure it returns an
// empty slice and an error.
func (s *CollectionService) List(ctx context.Context) ([]model.Collection, error) {
	docs, err := s.store.List(ctx, repository.TableCollections)
	if err != nil {
		s.logger.Error("failed to list collections", slog.String("error", err.Error()))
		return []model.Collection{}, fmt.Errorf("listing collections: %w", err)
	}

	collections := make([]model.Collection, 0, len(docs))
	for i := range docs {
		c, err := toCollection(&docs[i])
		if err != nil {
			s.logger.Error("skipping malformed collection",
				slog.String("id", docs[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		collections = append(collections, *c)
	}

	return collections, nil
}

// Create validates name and stores a new collection with a zero count.
// Validation failures never reach the store.
func (s *CollectionService) Create(ctx context.Context, name string) (*model.Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	id := s.opts.newID()
	doc, err := s.store.Create(ctx, repository.TableCollections, id, map[string]any{
		"id":    id,
		"name":  name,
		"count": 0,
	})
	if err != nil {
		s.logger.Error("failed to create collection",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	collection, err := toCollection(doc)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	s.logger.Info("collection created",
		slog.String("id", collection.ID),
		slog.String("name", collection.Name),
	)

	return collection, nil
}

// Get retrieves one collection. A missing id yields apperror.ErrNotFound.
func (s *CollectionService) Get(ctx context.Context, id string) (*model.Collection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "collection ID is required")
	}

	doc, err := s.store.Get(ctx, repository.TableCollections, id)
	if err != nil {
		return nil, err
	}

	return toCollection(doc)
}

// Rename changes the name of an existing collection. The count is left
// untouched.
func (s *CollectionService) Rename(ctx context.Context, id, name string) (*model.Collection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "collection ID is required")
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	doc, err := s.store.Update(ctx, repository.TableCollections, id, map[string]any{"name": name})
	if err != nil {
		s.logger.Error("failed to rename collection",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("renaming collection %s: %w", id, err)
	}

	collection, err := toCollection(doc)
	if err != nil {
		return nil, fmt.Errorf("renaming collection %s: %w", id, err)
	}

	s.logger.Info("collection renamed",
		slog.String("id", collection.ID),
		slog.String("name", collection.Name),
	)

	return collection, nil
}

// IncrementCount adds one to the collection's counter with the store's atomic
// increment. It reports false with an error when the collection is missing or
// the store fails.
func (s *CollectionService) IncrementCount(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, apperror.ValidationFailed("id", "collection ID is required")
	}

	doc, err := s.store.Increment(ctx, repository.TableCollections, id, "count", 1)
	if err != nil {
		s.logger.Error("failed to increment collection count",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("incrementing collection %s: %w", id, err)
	}

	s.logger.Debug("collection count incremented",
		slog.String("id", id),
		slog.Any("count", doc.Fields["count"]),
	)

	return true, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "collection name is required")
	}
	if len(name) > MaxCollectionNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("collection name must be %d characters or less", MaxCollectionNameLength))
	}
	return name, nil
}

func toCollection(doc *repository.Document) (*model.Collection, error) {
	var rec collectionRecord
	if err := doc.Decode(&rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = doc.ID
	}

	return &model.Collection{
		ID:        rec.ID,
		Name:      rec.Name,
		Count:     rec.Count,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
