// Package catalog is a thin typed accessor over the movie catalog's search,
// detail and videos endpoints. It does not retry: callers decide whether a
// failed lookup aborts their unit of work (they log and skip).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"moviescene/discoveryservice/internal/domain"
	"moviescene/discoveryservice/internal/metrics"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	redisCacheKey  = "discovery:catalog:"
)

type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

type searchResponse struct {
	Results []domain.CatalogMovie `json:"results"`
}

type videosResponse struct {
	Results []domain.Video `json:"results"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 6 * time.Hour
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// SearchMovies returns one page of catalog search hits in the catalog's own
// relevance order. Responses are cached in Redis when a client is configured;
// detail and video lookups are not cached because their results feed one-shot
// enrichment writes.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) ([]domain.CatalogMovie, error) {
	if page <= 0 {
		page = 1
	}
	cacheKey := redisCacheKey + "search:" + strings.ToLower(strings.TrimSpace(query)) + ":" + strconv.Itoa(page)

	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached []domain.CatalogMovie
			if json.Unmarshal(data, &cached) == nil {
				metrics.CatalogCacheHitsTotal.Inc()
				return cached, nil
			}
		}
		metrics.CatalogCacheMissesTotal.Inc()
	}

	params := url.Values{
		"api_key": {c.apiKey},
		"query":   {strings.TrimSpace(query)},
		"page":    {strconv.Itoa(page)},
	}

	var decoded searchResponse
	if err := c.get(ctx, "search", "/search/movie?"+params.Encode(), &decoded); err != nil {
		return nil, err
	}

	if c.redis != nil {
		if data, err := json.Marshal(decoded.Results); err == nil {
			_ = c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err()
		}
	}
	return decoded.Results, nil
}

// MovieDetails fetches the full record for one catalog id, including genres.
func (c *Client) MovieDetails(ctx context.Context, id int64) (domain.MovieDetails, error) {
	params := url.Values{"api_key": {c.apiKey}}
	var decoded domain.MovieDetails
	path := fmt.Sprintf("/movie/%d?%s", id, params.Encode())
	if err := c.get(ctx, "detail", path, &decoded); err != nil {
		return domain.MovieDetails{}, err
	}
	return decoded, nil
}

// MovieVideos lists the catalog's known videos for one movie, in the
// catalog's order.
func (c *Client) MovieVideos(ctx context.Context, id int64) ([]domain.Video, error) {
	params := url.Values{"api_key": {c.apiKey}}
	var decoded videosResponse
	path := fmt.Sprintf("/movie/%d/videos?%s", id, params.Encode())
	if err := c.get(ctx, "videos", path, &decoded); err != nil {
		return nil, err
	}
	return decoded.Results, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	resp, err := c.http.Do(req)
	metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startedAt).Seconds())
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("catalog HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	if err := json.Unmarshal(body, into); err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("catalog response decode: %w", err)
	}
	metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}
