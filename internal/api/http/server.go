// Package apihttp exposes the discovery service over REST.
package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moviescene/discoveryservice/internal/discovery"
	"moviescene/discoveryservice/internal/domain"
	"moviescene/discoveryservice/internal/store"
)

const (
	maxSearchBodyBytes = 64 * 1024
	maxKeywords        = 50
	maxKeywordLength   = 200
)

type DiscoveryService interface {
	SearchMoviesByKeywords(ctx context.Context, keywords []string) (domain.DiscoveryResult, error)
	FindMovieByID(ctx context.Context, id uuid.UUID) (*domain.Movie, error)
	FindAllMovies(ctx context.Context) ([]domain.Movie, error)
	FindScenesByKeywords(ctx context.Context, keywords []string) ([]domain.Scene, error)
	FindScenesByMovieID(ctx context.Context, movieID uuid.UUID) ([]domain.Scene, error)
	FindAllScenes(ctx context.Context) ([]domain.Scene, error)
	FindSceneByID(ctx context.Context, id uuid.UUID) (*domain.Scene, error)
}

type Server struct {
	discovery  DiscoveryService
	logger     *slog.Logger
	posterBase string
	posters    *http.Client
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(discoveryService DiscoveryService, options ...ServerOption) *Server {
	server := &Server{
		discovery:  discoveryService,
		logger:     slog.Default(),
		posterBase: posterBaseURL,
		posters:    newPosterClient(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /movies/search", s.handleMovieSearch)
	mux.HandleFunc("GET /movies", s.handleListMovies)
	mux.HandleFunc("GET /movies/{id}", s.handleGetMovie)
	mux.HandleFunc("GET /posters", s.handlePoster)
	mux.HandleFunc("GET /scenes", s.handleListScenes)
	mux.HandleFunc("GET /scenes/search", s.handleSceneSearch)
	mux.HandleFunc("GET /scenes/movie/{movieId}", s.handleScenesByMovie)
	mux.HandleFunc("GET /scenes/{id}", s.handleGetScene)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "scene-discovery",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type movieSearchRequest struct {
	Keywords []string `json:"keywords"`
}

// handleMovieSearch runs one discovery pass. Per-step failures never fail
// the request: the response is the movie list, failures go to the log.
func (s *Server) handleMovieSearch(w http.ResponseWriter, r *http.Request) {
	var req movieSearchRequest
	body := io.LimitReader(r.Body, maxSearchBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := validateKeywords(req.Keywords); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.discovery.SearchMoviesByKeywords(r.Context(), req.Keywords)
	if err != nil {
		if errors.Is(err, discovery.ErrNoKeywords) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Error("movie search failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	for _, failure := range result.Failures {
		s.logger.Warn("movie search step skipped",
			slog.String("stage", failure.Stage),
			slog.String("subject", failure.Subject),
			slog.String("error", failure.Error),
		)
	}
	writeJSON(w, http.StatusOK, result.Movies)
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.discovery.FindAllMovies(r.Context())
	if err != nil {
		s.logger.Error("list movies failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list movies")
		return
	}
	if movies == nil {
		movies = []domain.Movie{}
	}
	writeJSON(w, http.StatusOK, movies)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid movie id")
		return
	}
	movie, err := s.discovery.FindMovieByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "movie not found")
			return
		}
		s.logger.Error("get movie failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load movie")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.discovery.FindAllScenes(r.Context())
	if err != nil {
		s.logger.Error("list scenes failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list scenes")
		return
	}
	writeScenes(w, scenes)
}

func (s *Server) handleSceneSearch(w http.ResponseWriter, r *http.Request) {
	keywords := splitKeywordsParam(r.URL.Query().Get("keywords"))
	if err := validateKeywords(keywords); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	scenes, err := s.discovery.FindScenesByKeywords(r.Context(), keywords)
	if err != nil {
		if errors.Is(err, discovery.ErrNoKeywords) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Error("scene search failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "scene search failed")
		return
	}
	writeScenes(w, scenes)
}

func (s *Server) handleScenesByMovie(w http.ResponseWriter, r *http.Request) {
	movieID, err := uuid.Parse(r.PathValue("movieId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid movie id")
		return
	}
	scenes, err := s.discovery.FindScenesByMovieID(r.Context(), movieID)
	if err != nil {
		s.logger.Error("scenes by movie failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load scenes")
		return
	}
	writeScenes(w, scenes)
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid scene id")
		return
	}
	scene, err := s.discovery.FindSceneByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "scene not found")
			return
		}
		s.logger.Error("get scene failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load scene")
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

func writeScenes(w http.ResponseWriter, scenes []domain.Scene) {
	if scenes == nil {
		scenes = []domain.Scene{}
	}
	writeJSON(w, http.StatusOK, scenes)
}

func validateKeywords(keywords []string) error {
	nonEmpty := 0
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		// The limit is per character, not per byte.
		if utf8.RuneCountInString(kw) > maxKeywordLength {
			return errors.New("keyword too long")
		}
		nonEmpty++
	}
	if nonEmpty == 0 {
		return errors.New("at least one keyword is required")
	}
	if nonEmpty > maxKeywords {
		return errors.New("too many keywords")
	}
	return nil
}

func splitKeywordsParam(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
