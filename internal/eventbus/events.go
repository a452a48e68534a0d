package eventbus

import "github.com/sakif/movieshelf/internal/model"

// EventMovieSaved is published after a membership was created and its
// collection counter incremented.
const EventMovieSaved = "movie_saved"

// MovieSaved is the EventMovieSaved payload. It is always published as a
// *MovieSaved.
//
// CollectionID is the full collection id the caller asked for, while
// Membership.CollectionKey holds the (possibly truncated) stored key.
type MovieSaved struct {
	Membership   model.Membership
	CollectionID string
}

// OnMovieSaved subscribes a typed handler to EventMovieSaved. Payloads of any
// other type are ignored.
func OnMovieSaved(b *Bus, fn func(*MovieSaved)) (unsubscribe func()) {
	return b.Subscribe(EventMovieSaved, func(payload any) {
		if ev, ok := payload.(*MovieSaved); ok {
			fn(ev)
		}
	})
}
