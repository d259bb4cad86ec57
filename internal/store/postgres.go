// Package store persists movies and scenes in Postgres. Movie rows are keyed
// by the external catalog id, so repeated discovery runs converge on one row
// per movie.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	id UUID PRIMARY KEY,
	tmdb_id BIGINT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	overview TEXT NOT NULL DEFAULT '',
	release_date TEXT NOT NULL DEFAULT '',
	poster_path TEXT NOT NULL DEFAULT '',
	backdrop_path TEXT NOT NULL DEFAULT '',
	vote_average DOUBLE PRECISION NOT NULL DEFAULT 0,
	vote_count INTEGER NOT NULL DEFAULT 0,
	genres TEXT[] NOT NULL DEFAULT '{}',
	youtube_trailer_id TEXT,
	youtube_trailer_url TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scenes (
	id UUID PRIMARY KEY,
	movie_id UUID NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	keywords TEXT[] NOT NULL DEFAULT '{}',
	tags TEXT[] NOT NULL DEFAULT '{}',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	ts TEXT NOT NULL DEFAULT '',
	youtube_clip_id TEXT,
	youtube_clip_url TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scenes_movie_id ON scenes (movie_id);
CREATE INDEX IF NOT EXISTS idx_scenes_keywords ON scenes USING GIN (keywords);
`

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
