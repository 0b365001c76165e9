// Package search calls the managed vector-store search endpoint that backs
// each manual. Responses are opaque JSON passed through to the assistant;
// the client adds a TTL cache and a retry policy, nothing else.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/qpss/knowledge-gateway/internal/topic"
)

const (
	defaultCacheTTL    = 60 * time.Second
	defaultCacheSize   = 512
	defaultMaxAttempts = 3
	defaultRetryBase   = 500 * time.Millisecond
)

// Error is a failed search call. Status is the upstream HTTP status, 0 for
// transport-level failures.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("search failed (status %d): %s", e.Status, e.Message)
	}
	return "search failed: " + e.Message
}

// Retryable reports whether the failure is worth another attempt: rate
// limits, upstream 5xx, and connection-level errors. Other 4xx and malformed
// responses are permanent.
func (e *Error) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Config configures a search Client.
type Config struct {
	BaseURL      string
	APIKey       string
	Organization string
	Project      string
	// StoreIDs maps each topic to its vector store identifier.
	StoreIDs map[topic.Topic]string

	CacheTTL  time.Duration
	CacheSize int
	// MaxAttempts bounds total tries per search, first attempt included.
	MaxAttempts int
	// RetryBase is the backoff before the first retry; it doubles per retry
	// with up to 30% random jitter added.
	RetryBase time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for cache and attempt events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client searches the vector stores with caching and retry. Safe for
// concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	cache      *expirable.LRU[string, json.RawMessage]
}

// NewClient creates a search client. Zero Config fields fall back to
// defaults; BaseURL, APIKey and StoreIDs must be set by the caller.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		cache:      expirable.NewLRU[string, json.RawMessage](cfg.CacheSize, nil, cfg.CacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the topic's vector store. The raw query goes over the wire;
// the normalized form is only the cache key. A fresh cache hit performs no
// network call.
func (c *Client) Search(ctx context.Context, t topic.Topic, query string) (json.RawMessage, error) {
	storeID, ok := c.cfg.StoreIDs[t]
	if !ok || storeID == "" {
		return nil, &Error{Message: fmt.Sprintf("no vector store configured for topic %q", t)}
	}

	key := string(t) + "\x00" + normalizeQuery(query)
	if payload, ok := c.cache.Get(key); ok {
		c.logger.Debug("search cache hit",
			slog.String("topic", t.String()),
		)
		return payload, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0.3
	b.MaxElapsedTime = 0

	attempt := 0
	payload, err := backoff.RetryWithData(func() (json.RawMessage, error) {
		attempt++
		data, err := c.doSearch(ctx, t, storeID, query)
		if err != nil {
			retryable := false
			if se, ok := err.(*Error); ok {
				retryable = se.Retryable()
			}
			c.logger.Warn("search attempt failed",
				slog.String("topic", t.String()),
				slog.Int("attempt", attempt),
				slog.Bool("retryable", retryable),
				slog.String("error", err.Error()),
			)
			if !retryable {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		c.logger.Info("search succeeded",
			slog.String("topic", t.String()),
			slog.Int("attempt", attempt),
		)
		return data, nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, payload)
	return payload, nil
}

func (c *Client) doSearch(ctx context.Context, t topic.Topic, storeID, query string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/vector_stores/" + storeID + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if c.cfg.Project != "" {
		req.Header.Set("OpenAI-Project", c.cfg.Project)
	}
	if c.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.cfg.Organization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Message: "failed to read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := remoteErrorMessage(respBody)
		if msg == "" {
			msg = fmt.Sprintf("search request failed for topic %q", t)
		}
		return nil, &Error{Status: resp.StatusCode, Message: msg}
	}

	if !json.Valid(respBody) {
		return nil, &Error{Status: resp.StatusCode, Message: "malformed search response"}
	}

	return json.RawMessage(respBody), nil
}

// remoteErrorMessage extracts error.message from an API error body, if any.
func remoteErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Error.Message
}

// normalizeQuery folds whitespace and case so trivially different phrasings
// share a cache entry. The outgoing request always carries the raw query.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
