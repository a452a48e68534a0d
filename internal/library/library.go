// Package library keeps the display-ready collections in memory and keeps
// them current.
//
// The Library subscribes to eventbus.EventMovieSaved. When a movie is saved,
// the affected collection is rebuilt in the background and swapped into the
// view, so every reader sees the new membership without re-fetching on its
// own. Readers take copies with Snapshot and compare versions to notice
// changes.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/movieshelf/internal/eventbus"
	"github.com/sakif/movieshelf/internal/model"
)

// Builder rebuilds collection views. *service.Reconciler implements it.
type Builder interface {
	BuildCollection(ctx context.Context, collectionID string) (*model.CollectionView, error)
	BuildAll(ctx context.Context) ([]model.CollectionView, error)
}

// Library is safe for concurrent use.
//
// Every build takes a ticket from seq before it reads the store. A result is
// applied only if no build with a later ticket has been applied for the same
// collection, so a slow rebuild never replaces a newer one.
type Library struct {
	builder Builder
	logger  *slog.Logger

	mu       sync.RWMutex
	views    []model.CollectionView
	version  uint64
	closed   bool
	seq      uint64
	applied  map[string]uint64
	loadedAt uint64

	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	inflight    sync.WaitGroup
}

// New creates a Library and subscribes it to bus. Call Load for the initial
// contents and Close to unsubscribe.
func New(builder Builder, bus *eventbus.Bus, logger *slog.Logger) *Library {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Library{
		builder: builder,
		logger:  logger,
		views:   []model.CollectionView{},
		applied: make(map[string]uint64),
		ctx:     ctx,
		cancel:  cancel,
	}
	l.unsubscribe = eventbus.OnMovieSaved(bus, l.onMovieSaved)
	return l
}

// onMovieSaved runs on the publisher's goroutine, so the rebuild is handed
// off instead of blocking the save.
func (l *Library) onMovieSaved(ev *eventbus.MovieSaved) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.inflight.Add(1)
	l.seq++
	ticket := l.seq
	l.mu.Unlock()

	go func() {
		defer l.inflight.Done()
		if err := l.refresh(l.ctx, ev.CollectionID, ticket); err != nil {
			l.logger.Error("library refresh after save failed",
				slog.String("collectionId", ev.CollectionID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Load replaces the whole view with a fresh build of every collection.
// Expanded flags survive for collections that are still present. Collections
// refreshed after the load started keep their newer view.
func (l *Library) Load(ctx context.Context) error {
	ticket := l.nextTicket()

	views, err := l.builder.BuildAll(ctx)
	if err != nil {
		return fmt.Errorf("loading library: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ticket < l.loadedAt {
		l.logger.Debug("stale library load dropped", slog.Uint64("ticket", ticket))
		return nil
	}
	l.loadedAt = ticket

	current := make(map[string]model.CollectionView, len(l.views))
	for _, v := range l.views {
		current[v.ID] = v
	}
	seen := make(map[string]bool, len(views))
	for i := range views {
		id := views[i].ID
		seen[id] = true
		if cur, ok := current[id]; ok && l.applied[id] > ticket {
			views[i] = cur
			continue
		}
		views[i].Expanded = current[id].Expanded
		l.applied[id] = ticket
	}
	for _, v := range l.views {
		if !seen[v.ID] && l.applied[v.ID] > ticket {
			views = append(views, v)
		}
	}
	l.views = views
	l.version++

	l.logger.Debug("library loaded",
		slog.Int("collections", len(views)),
		slog.Uint64("version", l.version),
	)
	return nil
}

// Refresh rebuilds one collection and swaps it into the view, keeping its
// Expanded flag. An unknown collection is appended.
func (l *Library) Refresh(ctx context.Context, collectionID string) error {
	return l.refresh(ctx, collectionID, l.nextTicket())
}

func (l *Library) refresh(ctx context.Context, collectionID string, ticket uint64) error {
	view, err := l.builder.BuildCollection(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("refreshing collection %s: %w", collectionID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ticket < l.applied[view.ID] {
		l.logger.Debug("stale collection rebuild dropped",
			slog.String("collectionId", view.ID),
			slog.Uint64("ticket", ticket),
		)
		return nil
	}
	l.applied[view.ID] = ticket

	if i := l.indexOf(view.ID); i >= 0 {
		view.Expanded = l.views[i].Expanded
		l.views[i] = *view
	} else {
		l.views = append(l.views, *view)
	}
	l.version++

	l.logger.Debug("library collection refreshed",
		slog.String("collectionId", view.ID),
		slog.Int("movies", len(view.Movies)),
		slog.Uint64("version", l.version),
	)
	return nil
}

func (l *Library) nextTicket() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	return l.seq
}

// Snapshot returns a deep copy of the current views and their version.
func (l *Library) Snapshot() ([]model.CollectionView, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.CollectionView, len(l.views))
	for i, v := range l.views {
		out[i] = v.Clone()
	}
	return out, l.version
}

// Get returns a copy of one view.
func (l *Library) Get(collectionID string) (model.CollectionView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.indexOf(collectionID); i >= 0 {
		return l.views[i].Clone(), true
	}
	return model.CollectionView{}, false
}

// SetExpanded sets a collection's Expanded flag. It reports false for an
// unknown collection.
func (l *Library) SetExpanded(collectionID string, expanded bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(collectionID)
	if i < 0 {
		return false
	}
	if l.views[i].Expanded != expanded {
		l.views[i].Expanded = expanded
		l.version++
	}
	return true
}

// Wait blocks until background refreshes started so far have finished.
func (l *Library) Wait() {
	l.inflight.Wait()
}

// Close unsubscribes from the bus, cancels in-flight refreshes and waits for
// them. It is safe to call more than once.
func (l *Library) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.unsubscribe()
	l.cancel()
	l.inflight.Wait()
}

// indexOf must be called with mu held.
func (l *Library) indexOf(collectionID string) int {
	for i := range l.views {
		if l.views[i].ID == collectionID {
			return i
		}
	}
	return -1
}
