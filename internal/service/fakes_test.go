package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/eventbus"
	"github.com/sakif/movieshelf/internal/model"
	"github.com/sakif/movieshelf/internal/repository"
)

// =========================================================================
// FAKE DOCUMENT STORE
// =========================================================================
//
// fakeStore keeps documents in memory, in insertion order per table. Fields
// go through a JSON round trip like they would over the wire, so numbers come
// back as float64.
//
// Failures are injected per operation ("list", "create", ...) and optionally
// per table ("list:memberships"); calls records every operation made.

type fakeStore struct {
	mu     sync.Mutex
	tables map[string][]repository.Document
	fail   map[string]error
	calls  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: make(map[string][]repository.Document),
		fail:   make(map[string]error),
	}
}

var _ repository.DocumentStore = (*fakeStore)(nil)

func (f *fakeStore) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeStore) check(op, table string) error {
	f.calls = append(f.calls, op+":"+table)
	if err, ok := f.fail[op+":"+table]; ok {
		return err
	}
	return f.fail[op]
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStore) index(table, id string) int {
	for i, d := range f.tables[table] {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeStore) List(_ context.Context, table string) ([]repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("list", table); err != nil {
		return nil, err
	}
	out := make([]repository.Document, 0, len(f.tables[table]))
	for _, d := range f.tables[table] {
		out = append(out, copyDoc(d))
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, table, id string) (*repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("get", table); err != nil {
		return nil, err
	}
	i := f.index(table, id)
	if i < 0 {
		return nil, apperror.NotFound(table, id)
	}
	d := copyDoc(f.tables[table][i])
	return &d, nil
}

func (f *fakeStore) Create(_ context.Context, table, id string, fields map[string]any) (*repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("create", table); err != nil {
		return nil, err
	}
	if f.index(table, id) >= 0 {
		return nil, apperror.Conflict(table, id)
	}
	now := time.Now().UTC()
	d := repository.Document{ID: id, Fields: roundTrip(fields), CreatedAt: now, UpdatedAt: now}
	f.tables[table] = append(f.tables[table], d)
	out := copyDoc(d)
	return &out, nil
}

func (f *fakeStore) Update(_ context.Context, table, id string, fields map[string]any) (*repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("update", table); err != nil {
		return nil, err
	}
	i := f.index(table, id)
	if i < 0 {
		return nil, apperror.NotFound(table, id)
	}
	for k, v := range roundTrip(fields) {
		f.tables[table][i].Fields[k] = v
	}
	out := copyDoc(f.tables[table][i])
	return &out, nil
}

func (f *fakeStore) Increment(_ context.Context, table, id, field string, by int) (*repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("increment", table); err != nil {
		return nil, err
	}
	i := f.index(table, id)
	if i < 0 {
		return nil, apperror.NotFound(table, id)
	}
	current, _ := f.tables[table][i].Fields[field].(float64)
	f.tables[table][i].Fields[field] = current + float64(by)
	out := copyDoc(f.tables[table][i])
	return &out, nil
}

func (f *fakeStore) Delete(_ context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("delete", table); err != nil {
		return err
	}
	i := f.index(table, id)
	if i < 0 {
		return apperror.NotFound(table, id)
	}
	f.tables[table] = append(f.tables[table][:i:i], f.tables[table][i+1:]...)
	return nil
}

func (f *fakeStore) Close() error { return nil }

// raw returns the stored fields of one document.
func (f *fakeStore) raw(table, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(table, id); i >= 0 {
		return copyDoc(f.tables[table][i]).Fields
	}
	return nil
}

func (f *fakeStore) size(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func roundTrip(fields map[string]any) map[string]any {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func copyDoc(d repository.Document) repository.Document {
	d.Fields = roundTrip(d.Fields)
	return d
}

// =========================================================================
// FAKE CATALOG
// =========================================================================

type fakeCatalog struct {
	mu     sync.Mutex
	movies map[string]*model.MovieDetails
	fail   map[string]error
	calls  []string
}

func newFakeCatalog(movies ...*model.MovieDetails) *fakeCatalog {
	c := &fakeCatalog{movies: make(map[string]*model.MovieDetails), fail: make(map[string]error)}
	for _, m := range movies {
		c.movies[fmt.Sprint(m.ID)] = m
	}
	return c
}

func (c *fakeCatalog) GetMovieDetails(_ context.Context, id string) (*model.MovieDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, id)
	if err, ok := c.fail[id]; ok {
		return nil, err
	}
	m, ok := c.movies[id]
	if !ok {
		return nil, apperror.NotFound("movie", id)
	}
	out := *m
	return &out, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sequentialIDs yields "id0001xxxxxxxxxxxxxx", "id0002xxxxxxxxxxxxxx", ...
// Their 10-character prefixes are distinct.
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id%04dxxxxxxxxxxxxxx", n)
	}
}

type testEnv struct {
	store       *fakeStore
	bus         *eventbus.Bus
	collections *CollectionService
	memberships *MembershipService
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := newFakeStore()
	bus := eventbus.New()
	logger := discardLogger()

	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	collections := NewCollectionService(store, logger, opts...)
	memberships := NewMembershipService(store, collections, bus, logger, opts...)

	return &testEnv{store: store, bus: bus, collections: collections, memberships: memberships}
}

// mustCreateCollection creates a collection or fails the test.
func (e *testEnv) mustCreateCollection(t *testing.T, name string) *model.Collection {
	t.Helper()
	c, err := e.collections.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return c
}

// seedCollection stores a collection with a chosen id.
func (e *testEnv) seedCollection(t *testing.T, id, name string) {
	t.Helper()
	_, err := e.store.Create(context.Background(), repository.TableCollections, id,
		map[string]any{"id": id, "name": name, "count": 0})
	if err != nil {
		t.Fatalf("seeding collection %s: %v", id, err)
	}
}

func movie(id int, title string, rating float64) model.MovieInput {
	return model.MovieInput{
		ID:          id,
		Title:       title,
		PosterPath:  fmt.Sprintf("/poster-%d.jpg", id),
		VoteAverage: rating,
		ReleaseDate: "2023-06-06",
	}
}
