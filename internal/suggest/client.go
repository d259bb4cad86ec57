package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"moviescene/discoveryservice/internal/domain"
	"moviescene/discoveryservice/internal/metrics"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-3.5-turbo"
	defaultMinSpacing  = 1 * time.Second
	defaultMaxAttempts = 3

	// Backoff schedule: rate-limited attempts wait rateLimitBaseDelay<<attempt
	// (2s, 4s, 8s); any other retryable failure waits retryDelay.
	defaultRateLimitBaseDelay = 2 * time.Second
	defaultRetryDelay         = 1 * time.Second
)

var errMalformedResponse = errors.New("completion did not contain a parsable JSON object")

// statusError preserves the upstream HTTP status so retry classification can
// tell a quota rejection from a transient failure.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("suggestion API HTTP %d: %s", e.code, e.body)
}

type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	Client             *http.Client
	MinCallSpacing     time.Duration
	MaxAttempts        int
	RateLimitBaseDelay time.Duration
	RetryDelay         time.Duration
	Logger             *slog.Logger
}

// Client calls a chat-completion style suggestion API. It paces outbound
// calls, retries with backoff, and degrades to a fallback result instead of
// returning errors: a flaky suggestion service must never take the discovery
// pipeline down with it.
type Client struct {
	apiKey             string
	baseURL            string
	model              string
	http               *http.Client
	pacer              *callPacer
	maxAttempts        int
	rateLimitBaseDelay time.Duration
	retryDelay         time.Duration
	sleep              func(context.Context, time.Duration) error
	logger             *slog.Logger
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	spacing := cfg.MinCallSpacing
	if spacing <= 0 {
		spacing = defaultMinSpacing
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	rateLimitBase := cfg.RateLimitBaseDelay
	if rateLimitBase <= 0 {
		rateLimitBase = defaultRateLimitBaseDelay
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:             strings.TrimSpace(cfg.APIKey),
		baseURL:            strings.TrimRight(baseURL, "/"),
		model:              model,
		http:               httpClient,
		pacer:              newCallPacer(spacing),
		maxAttempts:        attempts,
		rateLimitBaseDelay: rateLimitBase,
		retryDelay:         retryDelay,
		sleep:              sleepContext,
		logger:             logger,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Suggest expands scene keywords into better search terms and candidate
// movie titles. It never fails: after all attempts are exhausted (or when no
// API key is configured) it returns the original keywords with a neutral
// confidence.
func (c *Client) Suggest(ctx context.Context, keywords []string) domain.Suggestion {
	fallback := domain.Suggestion{
		EnhancedKeywords: append([]string(nil), keywords...),
		MovieSuggestions: []string{},
		Confidence:       0.5,
	}
	if !c.Enabled() {
		return fallback
	}

	var result domain.Suggestion
	err := c.complete(ctx, completionParams{
		system:      suggestSystemPrompt,
		user:        buildSuggestPrompt(keywords),
		temperature: 0.7,
		maxTokens:   500,
	}, &result)
	if err != nil {
		c.logger.Warn("keyword suggestion degraded to fallback",
			slog.Any("keywords", keywords),
			slog.String("error", err.Error()),
		)
		metrics.SuggestionRequestsTotal.WithLabelValues("fallback").Inc()
		return fallback
	}

	if result.EnhancedKeywords == nil {
		result.EnhancedKeywords = append([]string(nil), keywords...)
	}
	if result.MovieSuggestions == nil {
		result.MovieSuggestions = []string{}
	}
	result.Confidence = clampConfidence(result.Confidence)
	metrics.SuggestionRequestsTotal.WithLabelValues("ok").Inc()
	return result
}

// AnalyzeMovieScenes asks the model whether a specific movie contains scenes
// matching the keyword set. Degrades to a low-confidence negative answer.
func (c *Client) AnalyzeMovieScenes(ctx context.Context, title string, keywords []string) domain.SceneAnalysis {
	fallback := domain.SceneAnalysis{
		HasRelevantScenes: false,
		SceneDescriptions: []string{},
		Confidence:        0.3,
	}
	if !c.Enabled() {
		return fallback
	}

	var result domain.SceneAnalysis
	err := c.complete(ctx, completionParams{
		system:      analyzeSystemPrompt,
		user:        buildAnalyzePrompt(title, keywords),
		temperature: 0.6,
		maxTokens:   400,
	}, &result)
	if err != nil {
		c.logger.Warn("movie scene analysis degraded to fallback",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		metrics.SuggestionRequestsTotal.WithLabelValues("fallback").Inc()
		return fallback
	}

	if result.SceneDescriptions == nil {
		result.SceneDescriptions = []string{}
	}
	result.Confidence = clampConfidence(result.Confidence)
	metrics.SuggestionRequestsTotal.WithLabelValues("ok").Inc()
	return result
}

type completionParams struct {
	system      string
	user        string
	temperature float64
	maxTokens   int
}

// complete runs the paced retry loop. A malformed body counts as a retryable
// failure within the same attempt budget; rate-limit rejections back off
// exponentially, everything else waits a fixed delay between attempts.
func (c *Client) complete(ctx context.Context, params completionParams, into any) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		content, err := c.chatCompletion(ctx, params)
		if err == nil {
			payload, ok := extractJSONObject(content)
			if ok {
				if parseErr := json.Unmarshal([]byte(payload), into); parseErr == nil {
					return nil
				}
			}
			err = errMalformedResponse
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if isRateLimitError(err) {
			delay := c.rateLimitBaseDelay << attempt
			c.logger.Warn("suggestion API rate limited, backing off",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
			)
			metrics.SuggestionRetriesTotal.WithLabelValues("rate_limited").Inc()
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		} else if attempt < c.maxAttempts-1 {
			metrics.SuggestionRetriesTotal.WithLabelValues("error").Inc()
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) chatCompletion(ctx context.Context, params completionParams) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: params.system},
			{Role: "user", Content: params.user},
		},
		Temperature: params.temperature,
		MaxTokens:   params.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: truncateBody(body)}
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", errors.New("empty completion response")
	}
	return decoded.Choices[0].Message.Content, nil
}

// isRateLimitError classifies upstream throttling: HTTP 429 or a message
// mentioning a quota problem.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "too many requests")
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func truncateBody(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
