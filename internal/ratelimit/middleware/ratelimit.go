package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"scorevc/internal/ratelimit/metrics"
	"scorevc/internal/ratelimit/models"
	"scorevc/pkg/platform/httputil"
	"scorevc/pkg/requestcontext"
)

// Store records requests against sliding-window budgets.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Result, error)
}

type Middleware struct {
	store    Store
	limits   map[models.Class]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every limit into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(store Store, limits map[models.Class]models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limits: limits,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit enforces the budget of class per caller. Anonymous callers share a
// budget per client IP. Store failures let the request through.
func (m *Middleware) Limit(class models.Class) func(http.Handler) http.Handler {
	limit, ok := m.limits[class]
	return func(next http.Handler) http.Handler {
		if m.disabled || !ok || limit.Requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := subjectKey(ctx, class)

			result, err := m.store.Allow(ctx, key, limit, requestcontext.Now(ctx))
			if err != nil {
				m.metrics.IncrementStoreErrors()
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.IncrementRejections(string(class))
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func subjectKey(ctx context.Context, class models.Class) string {
	caller := requestcontext.Caller(ctx)
	if caller.IsAnonymous() {
		return models.Key(class, "ip", requestcontext.ClientIP(ctx))
	}
	return models.Key(class, "principal", caller.String())
}

func addRateLimitHeaders(w http.ResponseWriter, result models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
