package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/movieshelf/internal/catalog/tmdb"
	"github.com/sakif/movieshelf/internal/model"
)

// NewCollectionsCommand creates the collections command group.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"c"},
		Short:   "List, create and show collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every collection",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsCreate(rootOpts, cmd, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <collection-id> <name>",
		Short: "Rename a collection",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsRename(rootOpts, cmd, args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <collection-id>",
		Short: "Show a collection with its movies resolved against the catalog",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsShow(rootOpts, cmd, args[0])
		},
	})

	return cmd
}

func runCollectionsList(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	a, err := opts.openApp(cmd)
	if err != nil {
		return out.Error(err)
	}
	defer a.Close()

	collections, err := a.Collections.List(cmd.Context())
	if err != nil {
		return out.Error(failure("listing collections", err))
	}
	out.VerboseLog("%d collection(s)", len(collections))

	return out.Success(collections, func(w io.Writer) {
		if len(collections) == 0 {
			fmt.Fprintln(w, "No collections.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tMOVIES")
		for _, c := range collections {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c.ID, c.Name, c.Count)
		}
		tw.Flush()
	})
}

func runCollectionsCreate(opts *RootOptions, cmd *cobra.Command, name string) error {
	out := opts.formatter(cmd)
	a, err := opts.openApp(cmd)
	if err != nil {
		return out.Error(err)
	}
	defer a.Close()

	c, err := a.Collections.Create(cmd.Context(), name)
	if err != nil {
		return out.Error(failure("creating collection", err))
	}

	return out.Success(c, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Created collection %q (%s)\n", c.Name, c.ID)
	})
}

func runCollectionsRename(opts *RootOptions, cmd *cobra.Command, id, name string) error {
	out := opts.formatter(cmd)
	a, err := opts.openApp(cmd)
	if err != nil {
		return out.Error(err)
	}
	defer a.Close()

	c, err := a.Collections.Rename(cmd.Context(), id, name)
	if err != nil {
		return out.Error(failure("renaming collection", err))
	}

	return out.Success(c, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Renamed %s to %q\n", c.ID, c.Name)
	})
}

func runCollectionsShow(opts *RootOptions, cmd *cobra.Command, id string) error {
	out := opts.formatter(cmd)
	a, err := opts.openApp(cmd)
	if err != nil {
		return out.Error(err)
	}
	defer a.Close()

	view, err := a.Reconciler.BuildCollection(cmd.Context(), id)
	if err != nil {
		return out.Error(failure("showing collection", err))
	}

	return out.Success(view, func(w io.Writer) {
		printView(w, view, opts.Verbose)
	})
}

// printView renders a view as an indented table. verbose adds poster URLs.
func printView(w io.Writer, view *model.CollectionView, verbose bool) {
	fmt.Fprintf(w, "%s (%d movies)\n", view.Name, view.Count)
	if len(view.Movies) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range view.Movies {
		source := ""
		if m.Source == model.SourceSnapshot {
			source = "(saved)"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%.1f\t%s", m.ID, m.Title, m.ReleaseDate, m.VoteAverage, source)
		if verbose {
			fmt.Fprintf(tw, "\t%s", tmdb.PosterURL(m.PosterPath, "w185"))
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}
