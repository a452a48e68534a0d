package model

// MovieInput is what a caller submits to save a movie into a collection.
// PosterPath may be empty when the catalog has no poster.
type MovieInput struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductionCompany is a catalog production company.
type ProductionCompany struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	LogoPath      string `json:"logo_path"`
	OriginCountry string `json:"origin_country"`
}

// MovieDetails is the full catalog record for one movie.
// The JSON tags match the TMDB wire format.
type MovieDetails struct {
	ID                  int                 `json:"id"`
	Title               string              `json:"title"`
	PosterPath          string              `json:"poster_path"`
	VoteAverage         float64             `json:"vote_average"`
	VoteCount           int                 `json:"vote_count"`
	ReleaseDate         string              `json:"release_date"`
	Overview            string              `json:"overview"`
	Genres              []Genre             `json:"genres"`
	Runtime             int                 `json:"runtime"`
	Budget              int64               `json:"budget"`
	Revenue             int64               `json:"revenue"`
	ProductionCompanies []ProductionCompany `json:"production_companies"`
}

// Input converts catalog details into a save request.
func (d *MovieDetails) Input() MovieInput {
	return MovieInput{
		ID:          d.ID,
		Title:       d.Title,
		PosterPath:  d.PosterPath,
		VoteAverage: d.VoteAverage,
		ReleaseDate: d.ReleaseDate,
	}
}

// Where a DisplayMovie's fields came from.
const (
	SourceCatalog  = "catalog"
	SourceSnapshot = "snapshot"
)

// DisplayMovie is one display-ready entry of a CollectionView.
type DisplayMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"posterPath"`
	VoteAverage float64 `json:"voteAverage"`
	ReleaseDate string  `json:"releaseDate"`
	Source      string  `json:"source"`
}
