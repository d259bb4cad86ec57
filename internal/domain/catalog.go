package domain

// CatalogMovie is the normalized shape of one catalog search hit, before
// persistence. JSON tags follow the catalog's wire format.
type CatalogMovie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
}

type Genre struct {
	Name string `json:"name"`
}

// MovieDetails carries the subset of the catalog detail endpoint used for
// genre enrichment.
type MovieDetails struct {
	ID     int64   `json:"id"`
	Genres []Genre `json:"genres"`
}

// Video is one entry of the catalog videos endpoint.
type Video struct {
	Type     string `json:"type"`
	Site     string `json:"site"`
	Official bool   `json:"official"`
	Key      string `json:"key"`
}
