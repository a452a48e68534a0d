// Package model defines the data structures used throughout the application.
// Store-facing record layouts live next to the services that persist them;
// these are the shapes the services return and the API serializes.
package model

import "time"

// Collection is a user-named group of saved movies.
//
// Count is denormalized: it is bumped by the save flow, never recomputed from
// the memberships table.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CollectionView is a collection rebuilt for display: its memberships
// resolved against the catalog, in store order.
//
// Expanded is view state owned by the library, kept across refreshes.
type CollectionView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Count    int            `json:"count"`
	Movies   []DisplayMovie `json:"movies"`
	Expanded bool           `json:"expanded"`
}

// Clone returns a deep copy, so callers can't alias the Movies slice.
func (v CollectionView) Clone() CollectionView {
	out := v
	out.Movies = append([]DisplayMovie(nil), v.Movies...)
	if out.Movies == nil {
		out.Movies = []DisplayMovie{}
	}
	return out
}
