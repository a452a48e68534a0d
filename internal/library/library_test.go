package library

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/eventbus"
	"github.com/sakif/movieshelf/internal/model"
	"github.com/sakif/movieshelf/internal/repository/sqlite"
	"github.com/sakif/movieshelf/internal/service"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeBuilder serves views from a map and counts builds.
type fakeBuilder struct {
	mu     sync.Mutex
	views  map[string]model.CollectionView
	order  []string
	builds int
	err    error
}

func newFakeBuilder(views ...model.CollectionView) *fakeBuilder {
	b := &fakeBuilder{views: make(map[string]model.CollectionView)}
	for _, v := range views {
		b.put(v)
	}
	return b
}

func (b *fakeBuilder) put(v model.CollectionView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.views[v.ID]; !ok {
		b.order = append(b.order, v.ID)
	}
	b.views[v.ID] = v
}

func (b *fakeBuilder) BuildCollection(_ context.Context, id string) (*model.CollectionView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds++
	if b.err != nil {
		return nil, b.err
	}
	v, ok := b.views[id]
	if !ok {
		return nil, apperror.NotFound("collection", id)
	}
	return &v, nil
}

func (b *fakeBuilder) BuildAll(context.Context) ([]model.CollectionView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return []model.CollectionView{}, b.err
	}
	out := make([]model.CollectionView, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.views[id])
	}
	return out, nil
}

func view(id, name string, movieIDs ...int) model.CollectionView {
	v := model.CollectionView{ID: id, Name: name, Count: len(movieIDs), Movies: []model.DisplayMovie{}}
	for _, m := range movieIDs {
		v.Movies = append(v.Movies, model.DisplayMovie{ID: m, Source: model.SourceCatalog})
	}
	return v
}

func newTestLibrary(t *testing.T, b Builder) (*Library, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	lib := New(b, bus, testLogger)
	t.Cleanup(lib.Close)
	return lib, bus
}

func TestLoad(t *testing.T) {
	b := newFakeBuilder(view("a", "A", 1), view("b", "B"))
	lib, _ := newTestLibrary(t, b)

	views, v0 := lib.Snapshot()
	assert.Empty(t, views)

	require.NoError(t, lib.Load(context.Background()))

	views, v1 := lib.Snapshot()
	require.Len(t, views, 2)
	assert.Equal(t, "A", views[0].Name)
	assert.Equal(t, "B", views[1].Name)
	assert.Greater(t, v1, v0)
}

func TestLoad_Failure(t *testing.T) {
	b := newFakeBuilder(view("a", "A"))
	b.err = apperror.Unavailable("list", nil)
	lib, _ := newTestLibrary(t, b)

	err := lib.Load(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))

	_, version := lib.Snapshot()
	assert.Zero(t, version, "failed load must not bump the version")
}

func TestMovieSavedRefreshesCollection(t *testing.T) {
	b := newFakeBuilder(view("a", "A", 1), view("b", "B"))
	lib, bus := newTestLibrary(t, b)
	require.NoError(t, lib.Load(context.Background()))
	require.True(t, lib.SetExpanded("a", true))
	_, before := lib.Snapshot()

	b.put(view("a", "A", 1, 2))
	bus.Publish(eventbus.EventMovieSaved, &eventbus.MovieSaved{
		Membership:   model.Membership{ID: "m2", CollectionKey: "a", MovieID: 2},
		CollectionID: "a",
	})
	lib.Wait()

	got, ok := lib.Get("a")
	require.True(t, ok)
	assert.Len(t, got.Movies, 2)
	assert.True(t, got.Expanded, "expanded flag survives the refresh")

	_, after := lib.Snapshot()
	assert.Greater(t, after, before)
}

func TestMovieSavedForUnknownCollectionAppends(t *testing.T) {
	b := newFakeBuilder(view("a", "A"))
	lib, bus := newTestLibrary(t, b)
	require.NoError(t, lib.Load(context.Background()))

	b.put(view("new", "New", 7))
	bus.Publish(eventbus.EventMovieSaved, &eventbus.MovieSaved{CollectionID: "new"})
	lib.Wait()

	views, _ := lib.Snapshot()
	require.Len(t, views, 2)
	assert.Equal(t, "new", views[1].ID)
}

func TestRefreshFailureKeepsOldView(t *testing.T) {
	b := newFakeBuilder(view("a", "A", 1))
	lib, _ := newTestLibrary(t, b)
	require.NoError(t, lib.Load(context.Background()))

	b.err = apperror.Unavailable("get", nil)
	err := lib.Refresh(context.Background(), "a")
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))

	got, ok := lib.Get("a")
	require.True(t, ok)
	assert.Len(t, got.Movies, 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	lib, _ := newTestLibrary(t, newFakeBuilder(view("a", "A", 1)))
	require.NoError(t, lib.Load(context.Background()))

	views, _ := lib.Snapshot()
	views[0].Movies[0].Title = "mutated"
	views[0].Name = "mutated"

	again, _ := lib.Snapshot()
	assert.Equal(t, "A", again[0].Name)
	assert.Empty(t, again[0].Movies[0].Title)
}

func TestSetExpanded(t *testing.T) {
	lib, _ := newTestLibrary(t, newFakeBuilder(view("a", "A")))
	require.NoError(t, lib.Load(context.Background()))
	_, v0 := lib.Snapshot()

	assert.False(t, lib.SetExpanded("ghost", true))
	assert.True(t, lib.SetExpanded("a", true))
	_, v1 := lib.Snapshot()
	assert.Equal(t, v0+1, v1)

	assert.True(t, lib.SetExpanded("a", true))
	_, v2 := lib.Snapshot()
	assert.Equal(t, v1, v2, "no-op change keeps the version")

	require.NoError(t, lib.Load(context.Background()))
	got, _ := lib.Get("a")
	assert.True(t, got.Expanded, "reload keeps expanded flags")
}

func TestCloseUnsubscribes(t *testing.T) {
	b := newFakeBuilder(view("a", "A"))
	bus := eventbus.New()
	lib := New(b, bus, testLogger)
	assert.Equal(t, 1, bus.Len(eventbus.EventMovieSaved))

	lib.Close()
	lib.Close()
	assert.Equal(t, 0, bus.Len(eventbus.EventMovieSaved))

	bus.Publish(eventbus.EventMovieSaved, &eventbus.MovieSaved{CollectionID: "a"})
	lib.Wait()
	assert.Zero(t, b.builds)
}

// TestEndToEnd wires the real services over an in-memory SQLite store.
func TestEndToEnd(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := eventbus.New()
	collections := service.NewCollectionService(store, testLogger)
	memberships := service.NewMembershipService(store, collections, bus, testLogger)
	lib := New(service.NewReconciler(collections, memberships, nil, testLogger), bus, testLogger)
	t.Cleanup(lib.Close)

	ctx := context.Background()
	c, err := collections.Create(ctx, "Favorites")
	require.NoError(t, err)
	require.NoError(t, lib.Load(ctx))

	_, err = memberships.SaveMovie(ctx, c.ID, model.MovieInput{ID: 603, Title: "The Matrix", VoteAverage: 8.2})
	require.NoError(t, err)
	lib.Wait()

	got, ok := lib.Get(c.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Movies, 1)
	assert.Equal(t, "The Matrix", got.Movies[0].Title)
	assert.Equal(t, model.SourceSnapshot, got.Movies[0].Source)
}

// gatedBuilder hands each build to the test, which decides when it returns
// and with what.
type gatedBuilder struct {
	calls chan gatedCall
}

type gatedCall struct {
	collectionID string
	one          chan model.CollectionView
	all          chan []model.CollectionView
}

func newGatedBuilder() *gatedBuilder {
	return &gatedBuilder{calls: make(chan gatedCall)}
}

func (b *gatedBuilder) BuildCollection(ctx context.Context, id string) (*model.CollectionView, error) {
	c := gatedCall{collectionID: id, one: make(chan model.CollectionView)}
	b.calls <- c
	select {
	case v := <-c.one:
		return &v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *gatedBuilder) BuildAll(ctx context.Context) ([]model.CollectionView, error) {
	c := gatedCall{all: make(chan []model.CollectionView)}
	b.calls <- c
	select {
	case v := <-c.all:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefresh_OlderRebuildFinishingLastIsDropped(t *testing.T) {
	b := newGatedBuilder()
	lib, _ := newTestLibrary(t, b)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- lib.Refresh(ctx, "c1") }()
	call1 := <-b.calls

	second := make(chan error, 1)
	go func() { second <- lib.Refresh(ctx, "c1") }()
	call2 := <-b.calls

	call2.one <- view("c1", "C1", 1, 2)
	require.NoError(t, <-second)
	call1.one <- view("c1", "C1", 1)
	require.NoError(t, <-first)

	got, ok := lib.Get("c1")
	require.True(t, ok)
	assert.Equal(t, 2, got.Count)
	assert.Len(t, got.Movies, 2)
}

func TestLoad_DoesNotOverwriteNewerRefresh(t *testing.T) {
	b := newGatedBuilder()
	lib, _ := newTestLibrary(t, b)
	ctx := context.Background()

	loaded := make(chan error, 1)
	go func() { loaded <- lib.Load(ctx) }()
	load := <-b.calls

	refreshed := make(chan error, 1)
	go func() { refreshed <- lib.Refresh(ctx, "c1") }()
	refresh := <-b.calls
	refresh.one <- view("c1", "C1", 1, 2)
	require.NoError(t, <-refreshed)
	require.True(t, lib.SetExpanded("c1", true))

	load.all <- []model.CollectionView{view("c1", "C1", 1), view("c2", "C2")}
	require.NoError(t, <-loaded)

	views, _ := lib.Snapshot()
	require.Len(t, views, 2)
	assert.Equal(t, "c1", views[0].ID)
	assert.Equal(t, 2, views[0].Count)
	assert.True(t, views[0].Expanded)
	assert.Equal(t, "c2", views[1].ID)
}

func TestLoad_StaleLoadIsDropped(t *testing.T) {
	b := newGatedBuilder()
	lib, _ := newTestLibrary(t, b)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- lib.Load(ctx) }()
	call1 := <-b.calls

	second := make(chan error, 1)
	go func() { second <- lib.Load(ctx) }()
	call2 := <-b.calls

	call2.all <- []model.CollectionView{view("c1", "C1", 1, 2)}
	require.NoError(t, <-second)
	call1.all <- []model.CollectionView{view("c1", "C1", 1)}
	require.NoError(t, <-first)

	got, ok := lib.Get("c1")
	require.True(t, ok)
	assert.Equal(t, 2, got.Count)
}
