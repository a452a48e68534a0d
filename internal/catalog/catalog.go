// Package catalog defines the read-only movie catalog boundary.
package catalog

import (
	"context"

	"github.com/sakif/movieshelf/internal/model"
)

// Catalog resolves a movie identifier to its full metadata.
//
// Implementations return an apperror.ErrNotFound error for unknown ids and
// apperror.ErrUnavailable for transport failures.
type Catalog interface {
	GetMovieDetails(ctx context.Context, id string) (*model.MovieDetails, error)
}
