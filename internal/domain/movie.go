package domain

import (
	"time"

	"github.com/google/uuid"
)

// Movie is a persisted movie discovered through the catalog. The catalog's
// own id (TMDBID) is the idempotency key: at most one row exists per catalog id.
type Movie struct {
	ID                uuid.UUID `json:"id"`
	TMDBID            int64     `json:"tmdbId"`
	Title             string    `json:"title"`
	Overview          string    `json:"overview"`
	ReleaseDate       string    `json:"releaseDate"`
	PosterPath        string    `json:"posterPath"`
	BackdropPath      string    `json:"backdropPath"`
	VoteAverage       float64   `json:"voteAverage"`
	VoteCount         int       `json:"voteCount"`
	Genres            []string  `json:"genres"`
	YouTubeTrailerID  string    `json:"youtubeTrailerId,omitempty"`
	YouTubeTrailerURL string    `json:"youtubeTrailerUrl,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Scenes            []Scene   `json:"scenes"`
}

// Scene is a described moment inside a movie. Scenes are written by the
// ingestion collaborator; this service only reads them.
type Scene struct {
	ID             uuid.UUID `json:"id"`
	MovieID        uuid.UUID `json:"movieId"`
	Description    string    `json:"description"`
	Keywords       []string  `json:"keywords"`
	Tags           []string  `json:"tags"`
	Confidence     float64   `json:"confidence"`
	Timestamp      string    `json:"timestamp,omitempty"`
	YouTubeClipID  string    `json:"youtubeClipId,omitempty"`
	YouTubeClipURL string    `json:"youtubeClipUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
