package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/model"
)

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "save <collection-id> <movie-id>",
		Short: "Save a movie into a collection",
		Long: `Save a movie into a collection.

The movie's title, poster, rating and release date are fetched from the
catalog. Without catalog credentials pass --title to save a minimal record.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(rootOpts, cmd, args[0], args[1], title)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title to save when no catalog is configured")

	return cmd
}

func runSave(opts *RootOptions, cmd *cobra.Command, collectionID, movieArg, title string) error {
	out := opts.formatter(cmd)

	movieID, err := strconv.Atoi(movieArg)
	if err != nil || movieID <= 0 {
		return out.Error(NewExitError(ExitCommandError, fmt.Sprintf("invalid movie id %q", movieArg)))
	}

	a, err := opts.openApp(cmd)
	if err != nil {
		return out.Error(err)
	}
	defer a.Close()

	input := model.MovieInput{ID: movieID, Title: title}
	if a.Catalog != nil && title == "" {
		details, err := a.Catalog.GetMovieDetails(cmd.Context(), movieArg)
		if err != nil {
			return out.Error(failure("fetching movie "+movieArg, err))
		}
		input = details.Input()
		out.VerboseLog("catalog: %s (%s)", details.Title, details.ReleaseDate)
	} else if title == "" {
		return out.Error(failure("saving movie",
			apperror.ValidationFailed("title", "no catalog configured; pass --title")))
	}

	m, err := a.Memberships.SaveMovie(cmd.Context(), collectionID, input)
	if err != nil {
		return out.Error(failure("saving movie", err))
	}

	return out.Success(m, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Saved %q to %s\n", m.Title, collectionID)
	})
}

// NewMoviesCommand creates the movies command.
func NewMoviesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "movies <collection-id>",
		Short: "List the saved memberships of a collection",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMovies(rootOpts, cmd, args[0])
		},
	}
}

func runMovies(opts *RootOptions, cmd *cobra.Command, collectionID string) error {
	out := opts.formatter(cmd)
	a, err := opts.openApp(cmd)
	if err != nil {
		return out.Error(err)
	}
	defer a.Close()

	movies, err := a.Memberships.ListMovies(cmd.Context(), collectionID)
	if err != nil {
		return out.Error(failure("listing movies", err))
	}

	return out.Success(movies, func(w io.Writer) {
		if len(movies) == 0 {
			fmt.Fprintln(w, "No movies.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MOVIE\tTITLE\tRATING\tRELEASED")
		for _, m := range movies {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", m.MovieID, m.Title, m.VoteAverage, m.ReleaseDate)
		}
		tw.Flush()
	})
}
