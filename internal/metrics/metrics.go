package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	SuggestionRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "suggestion_requests_total",
		Help:      "Suggestion requests by outcome (ok, fallback).",
	}, []string{"outcome"})

	SuggestionRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "suggestion_retries_total",
		Help:      "Suggestion attempt retries by cause (rate_limited, error).",
	}, []string{"cause"})

	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "catalog_requests_total",
		Help:      "Requests to the movie catalog by endpoint and result status.",
	}, []string{"endpoint", "status"})

	CatalogRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "catalog_request_duration_seconds",
		Help:      "Movie catalog request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"endpoint"})

	MoviesUpsertedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "movies_upserted_total",
		Help:      "Upserted movies by outcome (created, existing).",
	}, []string{"outcome"})

	TrailersResolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "trailers_resolved_total",
		Help:      "Total trailers resolved and persisted.",
	})

	CatalogCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "catalog_cache_hits_total",
		Help:      "Total catalog search cache hits.",
	})

	CatalogCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "catalog_cache_misses_total",
		Help:      "Total catalog search cache misses.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SuggestionRequestsTotal,
		SuggestionRetriesTotal,
		CatalogRequestsTotal,
		CatalogRequestDuration,
		MoviesUpsertedTotal,
		TrailersResolvedTotal,
		CatalogCacheHitsTotal,
		CatalogCacheMissesTotal,
	)
}
