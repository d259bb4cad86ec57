package discovery

import (
	"context"
	"log/slog"

	"moviescene/discoveryservice/internal/domain"
	"moviescene/discoveryservice/internal/metrics"
)

const trailerURLPrefix = "https://www.youtube.com/watch?v="

// upsertFromCatalog persists one catalog hit and enriches the stored row.
// Only a failed upsert is an error; genre and trailer enrichment failures are
// logged and the movie is returned without them.
func (s *Service) upsertFromCatalog(ctx context.Context, hit domain.CatalogMovie) (*domain.Movie, error) {
	stored, created, err := s.store.UpsertMovie(ctx, domain.Movie{
		TMDBID:       hit.ID,
		Title:        hit.Title,
		Overview:     hit.Overview,
		ReleaseDate:  hit.ReleaseDate,
		PosterPath:   hit.PosterPath,
		BackdropPath: hit.BackdropPath,
		VoteAverage:  hit.VoteAverage,
		VoteCount:    hit.VoteCount,
	})
	if err != nil {
		return nil, err
	}

	if created {
		metrics.MoviesUpsertedTotal.WithLabelValues("created").Inc()
		s.enrichGenres(ctx, stored)
	} else {
		metrics.MoviesUpsertedTotal.WithLabelValues("existing").Inc()
	}

	// Rows that already carry a trailer skip the videos fetch entirely.
	if stored.YouTubeTrailerID == "" {
		s.enrichTrailer(ctx, stored)
	}
	return stored, nil
}

func (s *Service) enrichGenres(ctx context.Context, movie *domain.Movie) {
	details, err := s.catalog.MovieDetails(ctx, movie.TMDBID)
	if err != nil {
		s.logger.Warn("genre enrichment failed",
			slog.Int64("tmdbId", movie.TMDBID),
			slog.String("error", err.Error()),
		)
		return
	}
	genres := make([]string, 0, len(details.Genres))
	for _, g := range details.Genres {
		genres = append(genres, g.Name)
	}
	if err := s.store.UpdateMovieGenres(ctx, movie.ID, genres); err != nil {
		s.logger.Warn("genre update failed",
			slog.Int64("tmdbId", movie.TMDBID),
			slog.String("error", err.Error()),
		)
		return
	}
	movie.Genres = genres
}

func (s *Service) enrichTrailer(ctx context.Context, movie *domain.Movie) {
	videos, err := s.catalog.MovieVideos(ctx, movie.TMDBID)
	if err != nil {
		s.logger.Warn("trailer lookup failed",
			slog.Int64("tmdbId", movie.TMDBID),
			slog.String("error", err.Error()),
		)
		return
	}
	trailer, ok := pickTrailer(videos)
	if !ok {
		return
	}

	url := trailerURLPrefix + trailer.Key
	changed, err := s.store.SetMovieTrailer(ctx, movie.ID, trailer.Key, url)
	if err != nil {
		s.logger.Warn("trailer update failed",
			slog.Int64("tmdbId", movie.TMDBID),
			slog.String("error", err.Error()),
		)
		return
	}
	// A concurrent writer may have set the trailer first; theirs stays.
	if changed {
		metrics.TrailersResolvedTotal.Inc()
		movie.YouTubeTrailerID = trailer.Key
		movie.YouTubeTrailerURL = url
	}
}

// pickTrailer selects the first official YouTube trailer, in the catalog's
// own video order.
func pickTrailer(videos []domain.Video) (domain.Video, bool) {
	for _, v := range videos {
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Official {
			return v, true
		}
	}
	return domain.Video{}, false
}
