// Package service contains the business logic layer of the application.
//
// THE LAYERS:
//
//	Handler / CLI  → parses input, renders output
//	Service        → validates, enforces rules, orchestrates
//	Repository     → reads/writes documents in the store
//
// Services take a repository.DocumentStore (interface), never a concrete
// driver, so tests pass an in-memory fake and production picks SQLite or
// Appwrite in internal/app.
//
// ERRORS:
// Every operation returns a result AND an error. On failure the result is the
// zero shape the caller can still render (empty slice, nil, false) and the
// error carries an apperror kind, so "no collections" and "fetch failed" are
// distinguishable.
package service

import (
	"strings"

	"github.com/rs/xid"
)

// DefaultCollectionKeyLength is how many leading characters of a collection
// id are stored on a membership as its collection key.
const DefaultCollectionKeyLength = 10

// CollectionKey returns the stored form of a collection id: its first n
// characters. n <= 0 keeps the whole id. Truncation never splits a multi-byte
// character.
//
// Distinct ids sharing the same prefix map to the same key, and their
// memberships become indistinguishable. xid ids start with a timestamp, so
// with the default length two collections created in the same second on one
// host collide. Configure n = 0 to store full ids.
func CollectionKey(collectionID string, n int) string {
	collectionID = strings.TrimSpace(collectionID)
	if n <= 0 {
		return collectionID
	}
	count := 0
	for i := range collectionID {
		if count == n {
			return collectionID[:i]
		}
		count++
	}
	return collectionID
}

type settings struct {
	newID     func() string
	keyLength int
}

func defaultSettings() settings {
	return settings{
		newID:     func() string { return xid.New().String() },
		keyLength: DefaultCollectionKeyLength,
	}
}

// Option customizes a service.
type Option func(*settings)

// WithIDGenerator replaces the xid generator used for new documents.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithCollectionKeyLength sets the collection key length. 0 stores full ids.
func WithCollectionKeyLength(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.keyLength = n
		}
	}
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
