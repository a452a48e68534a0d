package model

import "time"

// Membership records one movie saved into one collection.
//
// CollectionKey is the owning collection id as stored, which may be a
// truncated prefix of Collection.ID. The title, poster, rating and release
// date are a snapshot taken at save time.
type Membership struct {
	ID            string    `json:"id"`
	CollectionKey string    `json:"collectionKey"`
	MovieID       int       `json:"movieId"`
	Title         string    `json:"title"`
	PosterPath    string    `json:"posterPath"`
	VoteAverage   int       `json:"voteAverage"`
	ReleaseDate   string    `json:"releaseDate"`
	CreatedAt     time.Time `json:"createdAt"`
}
