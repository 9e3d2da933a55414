package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"scorevc/internal/ratelimit/middleware/mocks"
	"scorevc/internal/ratelimit/models"
	"scorevc/internal/ratelimit/store"
	"scorevc/pkg/domain"
	"scorevc/pkg/requestcontext"
)

//go:generate mockgen -source=ratelimit.go -destination=mocks/mocks.go -package=mocks Store

var (
	now    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limits = map[models.Class]models.Limit{
		models.ClassLinkage: {Requests: 2, Window: time.Minute},
	}
)

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func request(caller domain.Principal, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/score/link", nil)
	ctx := requestcontext.WithCaller(req.Context(), caller)
	ctx = requestcontext.WithClientMetadata(ctx, ip, "test")
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}

type RateLimitSuite struct {
	suite.Suite
	store  *mocks.MockStore
	logger *slog.Logger
	alice  domain.Principal
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitSuite))
}

func (s *RateLimitSuite) SetupTest() {
	s.store = mocks.NewMockStore(gomock.NewController(s.T()))
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.alice = domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
}

func (s *RateLimitSuite) serve(m *Middleware, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	m.Limit(models.ClassLinkage)(http.HandlerFunc(ok)).ServeHTTP(rr, req)
	return rr
}

func (s *RateLimitSuite) TestAllowedSetsHeaders() {
	s.store.EXPECT().
		Allow(gomock.Any(), "ratelimit:linkage:principal:rrkah-fqaaa-aaaaa-aaaaq-cai", limits[models.ClassLinkage], now).
		Return(models.Result{Allowed: true, Limit: 2, Remaining: 1, ResetAt: now.Add(time.Minute)}, nil)

	rr := s.serve(New(s.store, limits, s.logger), request(s.alice, "10.0.0.1"))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal("2", rr.Header().Get("X-RateLimit-Limit"))
	s.Equal("1", rr.Header().Get("X-RateLimit-Remaining"))
}

func (s *RateLimitSuite) TestAnonymousKeyedByIP() {
	s.store.EXPECT().
		Allow(gomock.Any(), "ratelimit:linkage:ip:10.0.0.1", gomock.Any(), now).
		Return(models.Result{Allowed: true, Limit: 2}, nil)

	rr := s.serve(New(s.store, limits, s.logger), request(domain.AnonymousPrincipal, "10.0.0.1"))

	s.Equal(http.StatusOK, rr.Code)
}

func (s *RateLimitSuite) TestRejected() {
	s.store.EXPECT().
		Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.Result{Limit: 2, ResetAt: now.Add(30 * time.Second), RetryAfter: 30}, nil)

	rr := s.serve(New(s.store, limits, s.logger), request(s.alice, "10.0.0.1"))

	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal("30", rr.Header().Get("Retry-After"))
	s.Contains(rr.Body.String(), `"error":"rate_limit_exceeded"`)
}

func (s *RateLimitSuite) TestStoreErrorFailsOpen() {
	s.store.EXPECT().
		Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.Result{}, errors.New("redis down"))

	rr := s.serve(New(s.store, limits, s.logger), request(s.alice, "10.0.0.1"))

	s.Equal(http.StatusOK, rr.Code)
}

func (s *RateLimitSuite) TestDisabledAndUnknownClassSkipStore() {
	rr := s.serve(New(s.store, limits, s.logger, WithDisabled(true)), request(s.alice, "10.0.0.1"))
	s.Equal(http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	New(s.store, limits, s.logger).Limit(models.ClassIssuance)(http.HandlerFunc(ok)).
		ServeHTTP(rr, request(s.alice, "10.0.0.1"))
	s.Equal(http.StatusOK, rr.Code)
}

func TestLimit_CallersHaveSeparateBudgets(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(store.NewInMemory(), limits, logger)
	h := m.Limit(models.ClassLinkage)(http.HandlerFunc(ok))
	alice := domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	bob := domain.MustPrincipal("aaaaa-aa")

	codes := func(p domain.Principal, n int) []int {
		var out []int
		for range n {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, request(p, "10.0.0.1"))
			out = append(out, rr.Code)
		}
		return out
	}

	assert.Equal(t, []int{200, 200, 429}, codes(alice, 3))
	assert.Equal(t, []int{200, 200}, codes(bob, 2))
}
