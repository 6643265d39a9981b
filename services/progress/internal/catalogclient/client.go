// Package catalogclient looks up content durations from the catalog service.
// Lookups fail open: any failure reports the duration as unknown.
package catalogclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/auth"
	"github.com/example/membership-portal/internal/platform/metrics"
)

const breakerName = "catalog-content"

var errNotFound = errors.New("catalog: content not found")

type Config struct {
	BaseURL       string
	InternalToken string
	Timeout       time.Duration
	CacheTTL      time.Duration
}

type Client struct {
	base  string
	token string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker[int]
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

type contentResponse struct {
	ID              string `json:"id"`
	DurationSeconds int    `json:"durationSeconds"`
}

func New(cfg Config, cache Cache, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = zap.NewNop()
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.InternalToken,
		http:  &http.Client{Timeout: cfg.Timeout},
		cb:    cb,
		cache: cache,
		ttl:   cfg.CacheTTL,
		log:   log,
	}
}

// Duration returns the catalog duration in seconds, or false when unknown.
func (c *Client) Duration(ctx context.Context, contentItemID string) (int, bool) {
	if c == nil || c.base == "" || strings.TrimSpace(contentItemID) == "" {
		return 0, false
	}
	if d, ok := c.cache.Get(ctx, contentItemID); ok {
		return d, true
	}

	d, err := c.cb.Execute(func() (int, error) { return c.fetch(ctx, contentItemID) })
	if err != nil {
		if !errors.Is(err, errNotFound) {
			c.log.Warn("catalog duration lookup failed", zap.String("content_item_id", contentItemID), zap.Error(err))
		}
		return 0, false
	}
	if d <= 0 {
		return 0, false
	}
	c.cache.Set(ctx, contentItemID, d, c.ttl)
	return d, true
}

// Invalidate drops a cached duration after the catalog reports a change.
func (c *Client) Invalidate(ctx context.Context, contentItemID string) {
	if c == nil {
		return
	}
	c.cache.Delete(ctx, contentItemID)
}

func (c *Client) fetch(ctx context.Context, id string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/internal/v1/content/"+url.PathEscape(id), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set(auth.InternalTokenHeader, c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, errNotFound
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("catalog: status %d", resp.StatusCode)
	}
	var out contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("catalog: decode: %w", err)
	}
	return out.DurationSeconds, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
