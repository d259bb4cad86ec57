package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"moviescene/discoveryservice/internal/domain"
)

const sceneColumns = `id, movie_id, description, keywords, tags, confidence, ts,
	COALESCE(youtube_clip_id, ''), COALESCE(youtube_clip_url, ''),
	created_at, updated_at`

func (s *Store) CreateScene(ctx context.Context, sc domain.Scene) (*domain.Scene, error) {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	if sc.Keywords == nil {
		sc.Keywords = []string{}
	}
	if sc.Tags == nil {
		sc.Tags = []string{}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO scenes (id, movie_id, description, keywords, tags, confidence, ts, youtube_clip_id, youtube_clip_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))
		 RETURNING created_at, updated_at`,
		sc.ID, sc.MovieID, sc.Description, sc.Keywords, sc.Tags, sc.Confidence, sc.Timestamp,
		sc.YouTubeClipID, sc.YouTubeClipURL,
	).Scan(&sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}
	return &sc, nil
}

func (s *Store) GetScene(ctx context.Context, id uuid.UUID) (*domain.Scene, error) {
	sc := &domain.Scene{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE id = $1`, id,
	).Scan(
		&sc.ID, &sc.MovieID, &sc.Description, &sc.Keywords, &sc.Tags, &sc.Confidence, &sc.Timestamp,
		&sc.YouTubeClipID, &sc.YouTubeClipURL,
		&sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return sc, nil
}

// FindScenesByKeywords matches scenes whose keyword set overlaps the query
// set, best confidence first.
func (s *Store) FindScenesByKeywords(ctx context.Context, keywords []string) ([]domain.Scene, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	return s.queryScenes(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE keywords && $1 ORDER BY confidence DESC`,
		keywords)
}

func (s *Store) FindScenesByMovie(ctx context.Context, movieID uuid.UUID) ([]domain.Scene, error) {
	return s.queryScenes(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE movie_id = $1 ORDER BY confidence DESC`,
		movieID)
}

func (s *Store) ListScenes(ctx context.Context) ([]domain.Scene, error) {
	return s.queryScenes(ctx,
		`SELECT ` + sceneColumns + ` FROM scenes ORDER BY created_at DESC`)
}

// ListScenesForMovies loads scenes for a batch of movies in one round trip.
func (s *Store) ListScenesForMovies(ctx context.Context, movieIDs []uuid.UUID) (map[uuid.UUID][]domain.Scene, error) {
	if len(movieIDs) == 0 {
		return map[uuid.UUID][]domain.Scene{}, nil
	}
	scenes, err := s.queryScenes(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE movie_id = ANY($1) ORDER BY confidence DESC`,
		movieIDs)
	if err != nil {
		return nil, err
	}
	byMovie := make(map[uuid.UUID][]domain.Scene, len(movieIDs))
	for _, sc := range scenes {
		byMovie[sc.MovieID] = append(byMovie[sc.MovieID], sc)
	}
	return byMovie, nil
}

func (s *Store) queryScenes(ctx context.Context, query string, args ...any) ([]domain.Scene, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []domain.Scene
	for rows.Next() {
		var sc domain.Scene
		if err := rows.Scan(
			&sc.ID, &sc.MovieID, &sc.Description, &sc.Keywords, &sc.Tags, &sc.Confidence, &sc.Timestamp,
			&sc.YouTubeClipID, &sc.YouTubeClipURL,
			&sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		scenes = append(scenes, sc)
	}
	return scenes, rows.Err()
}
