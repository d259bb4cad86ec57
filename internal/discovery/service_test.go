package discovery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"moviescene/discoveryservice/internal/domain"
)

type fakeSuggester struct {
	suggestion domain.Suggestion
}

func (f *fakeSuggester) Suggest(_ context.Context, keywords []string) domain.Suggestion {
	if f.suggestion.EnhancedKeywords == nil && f.suggestion.MovieSuggestions == nil {
		return domain.Suggestion{EnhancedKeywords: keywords, MovieSuggestions: []string{}, Confidence: 0.5}
	}
	return f.suggestion
}

type fakeCatalog struct {
	mu         sync.Mutex
	hits       map[string][]domain.CatalogMovie
	details    map[int64]domain.MovieDetails
	videos     map[int64][]domain.Video
	failQuery  map[string]error
	videoCalls map[int64]int
	searches   []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		hits:       map[string][]domain.CatalogMovie{},
		details:    map[int64]domain.MovieDetails{},
		videos:     map[int64][]domain.Video{},
		failQuery:  map[string]error{},
		videoCalls: map[int64]int{},
	}
}

func (f *fakeCatalog) SearchMovies(_ context.Context, query string, _ int) ([]domain.CatalogMovie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	if err := f.failQuery[query]; err != nil {
		return nil, err
	}
	return f.hits[query], nil
}

func (f *fakeCatalog) MovieDetails(_ context.Context, id int64) (domain.MovieDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return domain.MovieDetails{}, errors.New("details unavailable")
	}
	return d, nil
}

func (f *fakeCatalog) MovieVideos(_ context.Context, id int64) ([]domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoCalls[id]++
	return f.videos[id], nil
}

type fakeStore struct {
	mu       sync.Mutex
	byTMDBID map[int64]*domain.Movie
	order    []int64
	scenes   map[uuid.UUID][]domain.Scene
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byTMDBID: map[int64]*domain.Movie{},
		scenes:   map[uuid.UUID][]domain.Scene{},
	}
}

func (f *fakeStore) UpsertMovie(_ context.Context, m domain.Movie) (*domain.Movie, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byTMDBID[m.TMDBID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	m.ID = uuid.New()
	stored := m
	f.byTMDBID[m.TMDBID] = &stored
	f.order = append(f.order, m.TMDBID)
	copied := stored
	return &copied, true, nil
}

func (f *fakeStore) GetMovie(_ context.Context, id uuid.UUID) (*domain.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byTMDBID {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) ListMovies(_ context.Context) ([]domain.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	movies := make([]domain.Movie, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		movies = append(movies, *f.byTMDBID[f.order[i]])
	}
	return movies, nil
}

func (f *fakeStore) UpdateMovieGenres(_ context.Context, id uuid.UUID, genres []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byTMDBID {
		if m.ID == id {
			m.Genres = genres
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) SetMovieTrailer(_ context.Context, id uuid.UUID, trailerID, trailerURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byTMDBID {
		if m.ID == id {
			if m.YouTubeTrailerID != "" {
				return false, nil
			}
			m.YouTubeTrailerID = trailerID
			m.YouTubeTrailerURL = trailerURL
			return true, nil
		}
	}
	return false, errors.New("not found")
}

func (f *fakeStore) GetScene(_ context.Context, id uuid.UUID) (*domain.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, scenes := range f.scenes {
		for _, sc := range scenes {
			if sc.ID == id {
				copied := sc
				return &copied, nil
			}
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) ListScenes(_ context.Context) ([]domain.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Scene
	for _, scenes := range f.scenes {
		all = append(all, scenes...)
	}
	return all, nil
}

func (f *fakeStore) FindScenesByKeywords(_ context.Context, keywords []string) ([]domain.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]struct{}{}
	for _, kw := range keywords {
		want[kw] = struct{}{}
	}
	var matched []domain.Scene
	for _, scenes := range f.scenes {
		for _, sc := range scenes {
			for _, kw := range sc.Keywords {
				if _, ok := want[kw]; ok {
					matched = append(matched, sc)
					break
				}
			}
		}
	}
	return matched, nil
}

func (f *fakeStore) FindScenesByMovie(_ context.Context, movieID uuid.UUID) ([]domain.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Scene{}, f.scenes[movieID]...), nil
}

func (f *fakeStore) ListScenesForMovies(_ context.Context, movieIDs []uuid.UUID) (map[uuid.UUID][]domain.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byMovie := map[uuid.UUID][]domain.Scene{}
	for _, id := range movieIDs {
		if scenes, ok := f.scenes[id]; ok {
			byMovie[id] = append([]domain.Scene{}, scenes...)
		}
	}
	return byMovie, nil
}

func newTestService(suggester *fakeSuggester, catalog *fakeCatalog, st *fakeStore) *Service {
	return NewService(suggester, catalog, st, slog.New(slog.DiscardHandler))
}

func TestSearchDiscoversAndEnrichesMovie(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.hits["karate"] = []domain.CatalogMovie{
		{ID: 7, Title: "Kung Fu Panda", Overview: "A panda.", Popularity: 90},
	}
	catalog.details[7] = domain.MovieDetails{ID: 7, Genres: []domain.Genre{{Name: "Action"}, {Name: "Comedy"}}}
	catalog.videos[7] = []domain.Video{
		{Type: "Trailer", Site: "YouTube", Official: true, Key: "abc123"},
	}
	st := newFakeStore()

	svc := newTestService(&fakeSuggester{}, catalog, st)
	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"Karate"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(result.Movies) != 1 {
		t.Fatalf("expected 1 movie, got %d", len(result.Movies))
	}
	m := result.Movies[0]
	if m.TMDBID != 7 || m.Title != "Kung Fu Panda" {
		t.Fatalf("unexpected movie: %+v", m)
	}
	if len(m.Genres) != 2 || m.Genres[0] != "Action" {
		t.Fatalf("genres not enriched: %v", m.Genres)
	}
	if m.YouTubeTrailerID != "abc123" {
		t.Fatalf("trailer not resolved: %q", m.YouTubeTrailerID)
	}
	if m.YouTubeTrailerURL != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected trailer url: %q", m.YouTubeTrailerURL)
	}
	if m.Scenes == nil {
		t.Fatal("scenes must be an empty list, not nil")
	}
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}
}

func TestSearchDeduplicatesByCatalogID(t *testing.T) {
	catalog := newFakeCatalog()
	shared := domain.CatalogMovie{ID: 42, Title: "The Karate Kid", Popularity: 50}
	catalog.hits["karate"] = []domain.CatalogMovie{shared}
	catalog.hits["dojo"] = []domain.CatalogMovie{shared}
	st := newFakeStore()

	svc := newTestService(&fakeSuggester{}, catalog, st)
	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"karate", "dojo"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(result.Movies) != 1 {
		t.Fatalf("duplicate catalog id must collapse to one movie, got %d", len(result.Movies))
	}
	if len(st.byTMDBID) != 1 {
		t.Fatalf("duplicate catalog id must upsert once, got %d rows", len(st.byTMDBID))
	}
}

func TestSearchOrdersKeywordResultsByPopularity(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.hits["fight"] = []domain.CatalogMovie{
		{ID: 1, Title: "Low", Popularity: 10},
		{ID: 2, Title: "High", Popularity: 90},
		{ID: 3, Title: "Mid", Popularity: 50},
	}
	st := newFakeStore()

	svc := newTestService(&fakeSuggester{}, catalog, st)
	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"fight"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	var titles []string
	for _, m := range result.Movies {
		titles = append(titles, m.Title)
	}
	want := []string{"High", "Mid", "Low"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", titles, want)
		}
	}
}

func TestSearchTitleSuggestionsComeFirst(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.hits["Kung Fu Panda"] = []domain.CatalogMovie{
		{ID: 7, Title: "Kung Fu Panda", Popularity: 5},
	}
	catalog.hits["karate"] = []domain.CatalogMovie{
		{ID: 8, Title: "Popular Movie", Popularity: 99},
	}
	st := newFakeStore()

	suggester := &fakeSuggester{suggestion: domain.Suggestion{
		EnhancedKeywords: []string{"karate"},
		MovieSuggestions: []string{"Kung Fu Panda"},
		Confidence:       0.9,
	}}
	svc := newTestService(suggester, catalog, st)
	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"karate"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(result.Movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(result.Movies))
	}
	if result.Movies[0].Title != "Kung Fu Panda" {
		t.Fatalf("title-suggested movie must come first, got %q", result.Movies[0].Title)
	}
}

func TestSearchCollapsesTitleAndKeywordHits(t *testing.T) {
	catalog := newFakeCatalog()
	panda := domain.CatalogMovie{ID: 7, Title: "Kung Fu Panda", Popularity: 90}
	catalog.hits["Kung Fu Panda"] = []domain.CatalogMovie{panda}
	catalog.hits["karate"] = []domain.CatalogMovie{panda}
	catalog.hits["martial arts"] = []domain.CatalogMovie{panda}
	st := newFakeStore()

	suggester := &fakeSuggester{suggestion: domain.Suggestion{
		EnhancedKeywords: []string{"martial arts"},
		MovieSuggestions: []string{"Kung Fu Panda"},
		Confidence:       0.85,
	}}
	svc := newTestService(suggester, catalog, st)
	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"karate"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(result.Movies) != 1 {
		t.Fatalf("title and keyword hits for one catalog id must collapse, got %d movies", len(result.Movies))
	}
	if result.Movies[0].TMDBID != 7 {
		t.Fatalf("unexpected movie: %+v", result.Movies[0])
	}
	if len(st.byTMDBID) != 1 {
		t.Fatalf("expected a single persisted row, got %d", len(st.byTMDBID))
	}
}

func TestSearchLimitsHitsPerKeyword(t *testing.T) {
	catalog := newFakeCatalog()
	var hits []domain.CatalogMovie
	for i := int64(1); i <= 8; i++ {
		hits = append(hits, domain.CatalogMovie{ID: i, Title: "M", Popularity: float64(i)})
	}
	catalog.hits["karate"] = hits
	st := newFakeStore()

	svc := newTestService(&fakeSuggester{}, catalog, st)
	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"karate"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(result.Movies) != resultsPerKeyword {
		t.Fatalf("expected %d movies, got %d", resultsPerKeyword, len(result.Movies))
	}
}

func TestSearchRecordsFailuresWithoutAborting(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.failQuery["broken"] = errors.New("catalog unavailable")
	catalog.hits["karate"] = []domain.CatalogMovie{
		{ID: 7, Title: "Kung Fu Panda", Popularity: 90},
	}
	st := newFakeStore()

	svc := newTestService(&fakeSuggester{}, catalog, st)
	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"broken", "karate"})
	if err != nil {
		t.Fatalf("search must not fail on a single keyword error: %v", err)
	}
	if len(result.Movies) != 1 {
		t.Fatalf("healthy keyword must still resolve, got %d movies", len(result.Movies))
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %v", result.Failures)
	}
	failure := result.Failures[0]
	if failure.Stage != "keyword_search" || failure.Subject != "broken" {
		t.Fatalf("unexpected failure record: %+v", failure)
	}
	if !strings.Contains(failure.Error, "catalog unavailable") {
		t.Fatalf("failure must carry the cause, got %q", failure.Error)
	}
}

func TestRepeatedSearchIsIdempotent(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.hits["karate"] = []domain.CatalogMovie{
		{ID: 7, Title: "Kung Fu Panda", Popularity: 90},
	}
	catalog.videos[7] = []domain.Video{
		{Type: "Trailer", Site: "YouTube", Official: true, Key: "first"},
	}
	st := newFakeStore()

	svc := newTestService(&fakeSuggester{}, catalog, st)
	if _, err := svc.SearchMoviesByKeywords(context.Background(), []string{"karate"}); err != nil {
		t.Fatalf("first search: %v", err)
	}

	catalog.mu.Lock()
	catalog.videos[7] = []domain.Video{
		{Type: "Trailer", Site: "YouTube", Official: true, Key: "second"},
	}
	catalog.mu.Unlock()

	result, err := svc.SearchMoviesByKeywords(context.Background(), []string{"karate"})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if len(st.byTMDBID) != 1 {
		t.Fatalf("repeated search must keep one row, got %d", len(st.byTMDBID))
	}
	if got := result.Movies[0].YouTubeTrailerID; got != "first" {
		t.Fatalf("existing trailer must never be replaced, got %q", got)
	}
	catalog.mu.Lock()
	calls := catalog.videoCalls[7]
	catalog.mu.Unlock()
	if calls != 1 {
		t.Fatalf("trailered row must skip the videos fetch, got %d calls", calls)
	}
}

func TestTrailerSelectionSkipsTeasersAndUnofficial(t *testing.T) {
	videos := []domain.Video{
		{Type: "Teaser", Site: "YouTube", Official: true, Key: "A"},
		{Type: "Trailer", Site: "Vimeo", Official: true, Key: "X"},
		{Type: "Trailer", Site: "YouTube", Official: false, Key: "Y"},
		{Type: "Trailer", Site: "YouTube", Official: true, Key: "B"},
		{Type: "Trailer", Site: "YouTube", Official: true, Key: "C"},
	}
	trailer, ok := pickTrailer(videos)
	if !ok {
		t.Fatal("expected a trailer")
	}
	if trailer.Key != "B" {
		t.Fatalf("expected first official YouTube trailer, got %q", trailer.Key)
	}

	if _, ok := pickTrailer([]domain.Video{{Type: "Teaser", Site: "YouTube", Official: true, Key: "A"}}); ok {
		t.Fatal("teaser-only list must yield no trailer")
	}
}

func TestSearchRejectsEmptyKeywords(t *testing.T) {
	svc := newTestService(&fakeSuggester{}, newFakeCatalog(), newFakeStore())
	if _, err := svc.SearchMoviesByKeywords(context.Background(), []string{"  ", ""}); !errors.Is(err, ErrNoKeywords) {
		t.Fatalf("expected ErrNoKeywords, got %v", err)
	}
}

func TestSearchFoldsKeywordsForCatalogQueries(t *testing.T) {
	catalog := newFakeCatalog()
	st := newFakeStore()

	svc := newTestService(&fakeSuggester{}, catalog, st)
	if _, err := svc.SearchMoviesByKeywords(context.Background(), []string{"KARATE"}); err != nil {
		t.Fatalf("search error: %v", err)
	}
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	for _, q := range catalog.searches {
		if q == "karate" {
			return
		}
	}
	t.Fatalf("expected folded keyword query, got %v", catalog.searches)
}

func TestFindScenesByKeywordsKeepsCase(t *testing.T) {
	st := newFakeStore()
	movieID := uuid.New()
	st.scenes[movieID] = []domain.Scene{
		{ID: uuid.New(), MovieID: movieID, Description: "dojo duel", Keywords: []string{"Karate"}, Confidence: 0.9},
	}

	svc := newTestService(&fakeSuggester{}, newFakeCatalog(), st)
	scenes, err := svc.FindScenesByKeywords(context.Background(), []string{"Karate"})
	if err != nil {
		t.Fatalf("find scenes: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("keyword must reach the store exactly as given, got %d scenes", len(scenes))
	}
	if scenes[0].Description != "dojo duel" {
		t.Fatalf("unexpected scene: %+v", scenes[0])
	}

	scenes, err = svc.FindScenesByKeywords(context.Background(), []string{"karate"})
	if err != nil {
		t.Fatalf("find scenes: %v", err)
	}
	if len(scenes) != 0 {
		t.Fatalf("stored keywords are case-exact, got %d scenes", len(scenes))
	}
}

func TestFindMovieByIDAttachesScenes(t *testing.T) {
	catalog := newFakeCatalog()
	st := newFakeStore()
	stored, _, err := st.UpsertMovie(context.Background(), domain.Movie{TMDBID: 7, Title: "Kung Fu Panda"})
	if err != nil {
		t.Fatalf("seed movie: %v", err)
	}
	st.scenes[stored.ID] = []domain.Scene{
		{ID: uuid.New(), MovieID: stored.ID, Description: "training montage", Keywords: []string{"karate"}},
	}

	svc := newTestService(&fakeSuggester{}, catalog, st)
	movie, err := svc.FindMovieByID(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("find movie: %v", err)
	}
	if len(movie.Scenes) != 1 || movie.Scenes[0].Description != "training montage" {
		t.Fatalf("scenes not attached: %+v", movie.Scenes)
	}
}
