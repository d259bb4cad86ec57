// Package discovery turns free-form keyword sets into persisted, enriched
// movies. It orchestrates the suggestion client, the catalog client and the
// store; individual step failures are recorded and skipped, never fatal.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"moviescene/discoveryservice/internal/domain"
)

// maxConcurrentKeywordSearches bounds the parallel catalog queries of one
// discovery request. Deduplication runs only after every query has finished,
// so parallelism never changes which movie wins a duplicate id.
const maxConcurrentKeywordSearches = 4

// resultsPerKeyword caps how many catalog hits each keyword contributes
// before deduplication.
const resultsPerKeyword = 5

var ErrNoKeywords = errors.New("at least one keyword is required")

type SuggestionClient interface {
	Suggest(ctx context.Context, keywords []string) domain.Suggestion
}

type CatalogClient interface {
	SearchMovies(ctx context.Context, query string, page int) ([]domain.CatalogMovie, error)
	MovieDetails(ctx context.Context, id int64) (domain.MovieDetails, error)
	MovieVideos(ctx context.Context, id int64) ([]domain.Video, error)
}

type Store interface {
	UpsertMovie(ctx context.Context, m domain.Movie) (*domain.Movie, bool, error)
	GetMovie(ctx context.Context, id uuid.UUID) (*domain.Movie, error)
	ListMovies(ctx context.Context) ([]domain.Movie, error)
	UpdateMovieGenres(ctx context.Context, id uuid.UUID, genres []string) error
	SetMovieTrailer(ctx context.Context, id uuid.UUID, trailerID, trailerURL string) (bool, error)
	GetScene(ctx context.Context, id uuid.UUID) (*domain.Scene, error)
	ListScenes(ctx context.Context) ([]domain.Scene, error)
	FindScenesByKeywords(ctx context.Context, keywords []string) ([]domain.Scene, error)
	FindScenesByMovie(ctx context.Context, movieID uuid.UUID) ([]domain.Scene, error)
	ListScenesForMovies(ctx context.Context, movieIDs []uuid.UUID) (map[uuid.UUID][]domain.Scene, error)
}

type Service struct {
	suggest SuggestionClient
	catalog CatalogClient
	store   Store
	logger  *slog.Logger
}

func NewService(suggest SuggestionClient, catalog CatalogClient, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		suggest: suggest,
		catalog: catalog,
		store:   store,
		logger:  logger,
	}
}

// SearchMoviesByKeywords runs one discovery pass: ask the suggestion client
// for enhanced keywords and candidate titles, resolve each suggested title to
// its top catalog hit, then fan the full keyword list out over catalog search.
// Every resolved movie is upserted and enriched. The returned result lists
// title-suggested movies first in suggestion order, then keyword-derived
// movies by descending popularity, with no duplicate catalog ids.
func (s *Service) SearchMoviesByKeywords(ctx context.Context, keywords []string) (domain.DiscoveryResult, error) {
	cleaned := cleanKeywords(keywords)
	if len(cleaned) == 0 {
		return domain.DiscoveryResult{}, ErrNoKeywords
	}

	result := domain.DiscoveryResult{Movies: []domain.Movie{}}
	suggestion := s.suggest.Suggest(ctx, cleaned)
	s.logger.Info("suggestion received",
		slog.Int("enhancedKeywords", len(suggestion.EnhancedKeywords)),
		slog.Int("titleSuggestions", len(suggestion.MovieSuggestions)),
		slog.Float64("confidence", suggestion.Confidence),
	)

	seen := make(map[int64]struct{})

	for _, title := range suggestion.MovieSuggestions {
		hits, err := s.catalog.SearchMovies(ctx, title, 1)
		if err != nil {
			s.recordFailure(&result, "title_search", title, err)
			continue
		}
		if len(hits) == 0 {
			continue
		}
		top := hits[0]
		if _, dup := seen[top.ID]; dup {
			continue
		}
		movie, err := s.upsertFromCatalog(ctx, top)
		if err != nil {
			s.recordFailure(&result, "title_upsert", title, err)
			continue
		}
		seen[top.ID] = struct{}{}
		result.Movies = append(result.Movies, *movie)
	}

	// The original keywords and the enhanced ones all get their own query;
	// duplicates in the list are fine, the id dedupe below absorbs them.
	queries := foldKeywords(append(append([]string{}, cleaned...), suggestion.EnhancedKeywords...))

	hitsPerKeyword := make([][]domain.CatalogMovie, len(queries))
	sem := semaphore.NewWeighted(maxConcurrentKeywordSearches)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, keyword := range queries {
		wg.Add(1)
		go func(index int, keyword string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				s.recordFailure(&result, "keyword_search", keyword, err)
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			hits, err := s.catalog.SearchMovies(ctx, keyword, 1)
			if err != nil {
				mu.Lock()
				s.recordFailure(&result, "keyword_search", keyword, err)
				mu.Unlock()
				return
			}
			if len(hits) > resultsPerKeyword {
				hits = hits[:resultsPerKeyword]
			}
			// Indexed slot per keyword keeps flattening deterministic.
			hitsPerKeyword[index] = hits
		}(i, keyword)
	}
	wg.Wait()

	var candidates []domain.CatalogMovie
	seenCandidate := make(map[int64]struct{})
	for _, hits := range hitsPerKeyword {
		for _, hit := range hits {
			if _, dup := seenCandidate[hit.ID]; dup {
				continue
			}
			seenCandidate[hit.ID] = struct{}{}
			candidates = append(candidates, hit)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Popularity > candidates[j].Popularity
	})

	for _, hit := range candidates {
		if _, dup := seen[hit.ID]; dup {
			continue
		}
		movie, err := s.upsertFromCatalog(ctx, hit)
		if err != nil {
			s.recordFailure(&result, "keyword_upsert", hit.Title, err)
			continue
		}
		seen[hit.ID] = struct{}{}
		result.Movies = append(result.Movies, *movie)
	}

	s.attachScenes(ctx, result.Movies)

	s.logger.Info("discovery completed",
		slog.Int("keywords", len(queries)),
		slog.Int("movies", len(result.Movies)),
		slog.Int("failures", len(result.Failures)),
	)
	return result, nil
}

func (s *Service) FindMovieByID(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	movie, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	scenes, err := s.store.FindScenesByMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	if scenes == nil {
		scenes = []domain.Scene{}
	}
	movie.Scenes = scenes
	return movie, nil
}

func (s *Service) FindAllMovies(ctx context.Context) ([]domain.Movie, error) {
	movies, err := s.store.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	s.attachScenes(ctx, movies)
	return movies, nil
}

func (s *Service) FindScenesByKeywords(ctx context.Context, keywords []string) ([]domain.Scene, error) {
	cleaned := cleanKeywords(keywords)
	if len(cleaned) == 0 {
		return nil, ErrNoKeywords
	}
	// Stored scene keywords are not normalized, so the overlap must see the
	// query keywords exactly as given.
	return s.store.FindScenesByKeywords(ctx, cleaned)
}

func (s *Service) FindScenesByMovieID(ctx context.Context, movieID uuid.UUID) ([]domain.Scene, error) {
	return s.store.FindScenesByMovie(ctx, movieID)
}

func (s *Service) FindAllScenes(ctx context.Context) ([]domain.Scene, error) {
	return s.store.ListScenes(ctx)
}

func (s *Service) FindSceneByID(ctx context.Context, id uuid.UUID) (*domain.Scene, error) {
	return s.store.GetScene(ctx, id)
}

func (s *Service) recordFailure(result *domain.DiscoveryResult, stage, subject string, err error) {
	s.logger.Warn("discovery step failed",
		slog.String("stage", stage),
		slog.String("subject", subject),
		slog.String("error", err.Error()),
	)
	result.Failures = append(result.Failures, domain.StepFailure{
		Stage:   stage,
		Subject: subject,
		Error:   err.Error(),
	})
}

// attachScenes loads scenes for the batch in one query. A load failure leaves
// the movies with empty scene lists; the movies themselves are still returned.
func (s *Service) attachScenes(ctx context.Context, movies []domain.Movie) {
	if len(movies) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(movies))
	for i, m := range movies {
		ids[i] = m.ID
	}
	byMovie, err := s.store.ListScenesForMovies(ctx, ids)
	if err != nil {
		s.logger.Warn("scene attach failed", slog.String("error", err.Error()))
		byMovie = nil
	}
	for i := range movies {
		scenes := byMovie[movies[i].ID]
		if scenes == nil {
			scenes = []domain.Scene{}
		}
		movies[i].Scenes = scenes
	}
}

func cleanKeywords(keywords []string) []string {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	return cleaned
}

// foldKeywords lowercases keywords Unicode-correctly so equivalent spellings
// hit the same catalog cache entries. Only catalog queries are folded; scene
// keyword lookups stay case-exact.
func foldKeywords(keywords []string) []string {
	caser := cases.Lower(language.Und)
	folded := make([]string, len(keywords))
	for i, kw := range keywords {
		folded[i] = caser.String(kw)
	}
	return folded
}
