// Package passport looks up reputation scores for Ethereum addresses from the
// external score API.
package passport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"scorevc/internal/eth"
	"scorevc/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 20

// Client calls GET {base}/submit/{address}.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *circuit.Breaker
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	group   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport, e.g. for httptest servers.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout bounds each lookup. Zero keeps the caller's deadline only.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithMetrics(m *Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a score API client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		breaker: circuit.New("score-api"),
		logger:  slog.Default(),
		tracer:  otel.Tracer("scorevc/passport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type scoreResponse struct {
	Score *json.RawMessage `json:"score"`
}

// Score returns the address's reputation score. Concurrent lookups for the
// same address share one upstream call. Errors are *ProviderError.
func (c *Client) Score(ctx context.Context, address eth.Address) (float64, error) {
	ctx, span := c.tracer.Start(ctx, "passport.Score",
		trace.WithAttributes(attribute.String("address_hash", address.Hash().Short())))
	defer span.End()

	ch := c.group.DoChan(address.String(), func() (any, error) {
		// The shared call must not die with whichever caller started it.
		callCtx := context.WithoutCancel(ctx)
		var cancel context.CancelFunc = func() {}
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(callCtx, c.timeout)
		}
		defer cancel()
		return c.lookup(callCtx, address)
	})

	select {
	case <-ctx.Done():
		err := NewProviderError(ErrorTimeout, "score lookup abandoned", ctx.Err())
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

func (c *Client) lookup(ctx context.Context, address eth.Address) (float64, error) {
	if !c.breaker.Allow() {
		c.metrics.ObserveLookup(string(ErrorCircuitOpen), 0)
		return 0, NewProviderError(ErrorCircuitOpen, "score api circuit open", nil)
	}

	start := time.Now()
	score, err := c.fetch(ctx, address)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveLookup(string(CategoryOf(err)), elapsed)
		// Bad data is the API answering; it says nothing about availability.
		if IsRetryable(err) {
			if _, change := c.breaker.RecordFailure(); change.Opened {
				c.metrics.SetCircuitOpen(true)
				c.logger.WarnContext(ctx, "score api circuit opened", "breaker", c.breaker.Name())
			}
		}
		return 0, err
	}

	c.metrics.ObserveLookup("ok", elapsed)
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.metrics.SetCircuitOpen(false)
		c.logger.InfoContext(ctx, "score api circuit closed", "breaker", c.breaker.Name())
	}
	return score, nil
}

func (c *Client) fetch(ctx context.Context, address eth.Address) (float64, error) {
	url := fmt.Sprintf("%s/submit/%s", c.baseURL, address.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, NewProviderError(ErrorInternal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, NewProviderError(ErrorTimeout, "score api request timed out", err)
		}
		return 0, NewProviderError(ErrorProviderOutage, "score api request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, NewProviderError(ErrorRateLimited, "score api rate limited", nil)
	case resp.StatusCode >= 500:
		return 0, NewProviderError(ErrorProviderOutage, fmt.Sprintf("score api returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return 0, NewProviderError(ErrorBadData, fmt.Sprintf("score api returned %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, NewProviderError(ErrorProviderOutage, "read score api response", err)
	}
	return parseScore(body)
}

// parseScore reads {"score": "<decimal>"}. A score that is present but not a
// decimal counts as zero; a missing score is bad data.
func parseScore(body []byte) (float64, error) {
	var resp scoreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, NewProviderError(ErrorBadData, "invalid JSON in score api response", err)
	}
	if resp.Score == nil {
		return 0, NewProviderError(ErrorBadData, "score api response doesn't contain a score", nil)
	}
	var text string
	if err := json.Unmarshal(*resp.Score, &text); err != nil {
		return 0, NewProviderError(ErrorBadData, "score api response doesn't contain a score", err)
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, nil
	}
	return score, nil
}
