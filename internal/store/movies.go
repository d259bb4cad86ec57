package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"moviescene/discoveryservice/internal/domain"
)

const movieColumns = `id, tmdb_id, title, overview, release_date, poster_path, backdrop_path,
	vote_average, vote_count, genres,
	COALESCE(youtube_trailer_id, ''), COALESCE(youtube_trailer_url, ''),
	created_at, updated_at`

// UpsertMovie inserts the movie if its catalog id is new and returns the
// stored row either way. The insert races safely: ON CONFLICT DO NOTHING means
// concurrent writers of the same catalog id all converge on the winner's row.
func (s *Store) UpsertMovie(ctx context.Context, m domain.Movie) (*domain.Movie, bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Genres == nil {
		m.Genres = []string{}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO movies (id, tmdb_id, title, overview, release_date, poster_path, backdrop_path, vote_average, vote_count, genres)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (tmdb_id) DO NOTHING
		 RETURNING created_at, updated_at`,
		m.ID, m.TMDBID, m.Title, m.Overview, m.ReleaseDate, m.PosterPath, m.BackdropPath,
		m.VoteAverage, m.VoteCount, m.Genres,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err == nil {
		return &m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("upsert movie: %w", err)
	}

	existing, err := s.GetMovieByTMDBID(ctx, m.TMDBID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) GetMovie(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	return s.getMovie(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
}

func (s *Store) GetMovieByTMDBID(ctx context.Context, tmdbID int64) (*domain.Movie, error) {
	return s.getMovie(ctx, `SELECT `+movieColumns+` FROM movies WHERE tmdb_id = $1`, tmdbID)
}

func (s *Store) getMovie(ctx context.Context, query string, arg any) (*domain.Movie, error) {
	m := &domain.Movie{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&m.ID, &m.TMDBID, &m.Title, &m.Overview, &m.ReleaseDate, &m.PosterPath, &m.BackdropPath,
		&m.VoteAverage, &m.VoteCount, &m.Genres,
		&m.YouTubeTrailerID, &m.YouTubeTrailerURL,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}

func (s *Store) ListMovies(ctx context.Context) ([]domain.Movie, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+movieColumns+` FROM movies ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	var movies []domain.Movie
	for rows.Next() {
		var m domain.Movie
		if err := rows.Scan(
			&m.ID, &m.TMDBID, &m.Title, &m.Overview, &m.ReleaseDate, &m.PosterPath, &m.BackdropPath,
			&m.VoteAverage, &m.VoteCount, &m.Genres,
			&m.YouTubeTrailerID, &m.YouTubeTrailerURL,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func (s *Store) UpdateMovieGenres(ctx context.Context, id uuid.UUID, genres []string) error {
	if genres == nil {
		genres = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE movies SET genres = $1, updated_at = now() WHERE id = $2`, genres, id)
	if err != nil {
		return fmt.Errorf("update movie genres: %w", err)
	}
	return nil
}

// SetMovieTrailer records the trailer only when none is set yet. A trailer
// already on the row is never replaced. Returns whether the row changed.
func (s *Store) SetMovieTrailer(ctx context.Context, id uuid.UUID, trailerID, trailerURL string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE movies SET youtube_trailer_id = $1, youtube_trailer_url = $2, updated_at = now()
		 WHERE id = $3 AND youtube_trailer_id IS NULL`,
		trailerID, trailerURL, id)
	if err != nil {
		return false, fmt.Errorf("set movie trailer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
