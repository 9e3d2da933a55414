// Package service implements address linking: proving control of an external
// address, binding it to the caller, and caching its reputation score.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scorevc/internal/audit"
	"scorevc/internal/eth"
	"scorevc/internal/linkage/metrics"
	"scorevc/internal/linkage/models"
	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
	"scorevc/pkg/platform/sentinel"
	"scorevc/pkg/requestcontext"
)

// Store persists links. Link must perform the consistency check and the
// write atomically.
type Store interface {
	Link(ctx context.Context, principal domain.Principal, addressHash eth.AddressHash, score float64, now time.Time) (*models.Link, error)
	Get(ctx context.Context, principal domain.Principal) (*models.Link, error)
	Score(ctx context.Context, principal domain.Principal) (float64, error)
	PrincipalByAddress(ctx context.Context, addressHash eth.AddressHash) (domain.Principal, error)
}

// ScoreFetcher looks up an address's current reputation score.
type ScoreFetcher interface {
	Score(ctx context.Context, address eth.Address) (float64, error)
}

// Service links addresses to principals.
type Service struct {
	store        Store
	scores       ScoreFetcher
	scoreTimeout time.Duration
	auditor      *audit.Publisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithScoreTimeout bounds the external score lookup.
func WithScoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.scoreTimeout = d }
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store Store, scores ScoreFetcher, opts ...Option) *Service {
	s := &Service{
		store:        store,
		scores:       scores,
		scoreTimeout: 30 * time.Second,
		logger:       slog.Default(),
		tracer:       otel.Tracer("scorevc/linkage"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LinkMessage returns the challenge the address owner must sign.
func (s *Service) LinkMessage(caller domain.Principal, address string) (string, error) {
	addr, err := eth.ParseAddress(address)
	if err != nil {
		return "", err
	}
	return eth.LinkMessage(addr, caller), nil
}

// Link proves control of address, fetches its score and binds it to caller.
// Re-linking the same pair refreshes the score.
func (s *Service) Link(ctx context.Context, caller domain.Principal, signature, address string) (models.ScoreResult, error) {
	ctx, span := s.tracer.Start(ctx, "linkage.Link")
	defer span.End()

	result, err := s.link(ctx, caller, signature, address, false)
	s.finish(ctx, span, "link", err)
	return result, err
}

// Refresh re-fetches the score for a pair that is already linked.
func (s *Service) Refresh(ctx context.Context, caller domain.Principal, signature, address string) (models.ScoreResult, error) {
	ctx, span := s.tracer.Start(ctx, "linkage.Refresh")
	defer span.End()

	result, err := s.link(ctx, caller, signature, address, true)
	s.finish(ctx, span, "refresh", err)
	return result, err
}

func (s *Service) link(ctx context.Context, caller domain.Principal, signature, address string, refreshOnly bool) (models.ScoreResult, error) {
	if caller.IsAnonymous() {
		return models.ScoreResult{}, dErrors.New(dErrors.CodeUnauthorized, "anonymous callers cannot link addresses")
	}
	addr, err := eth.ParseAddress(address)
	if err != nil {
		return models.ScoreResult{}, err
	}
	sig, err := eth.ParseSignature(signature)
	if err != nil {
		return models.ScoreResult{}, err
	}

	signer, err := eth.RecoverSigner(eth.LinkMessage(addr, caller), sig)
	if err != nil {
		return models.ScoreResult{}, err
	}
	if signer != addr {
		return models.ScoreResult{}, dErrors.New(dErrors.CodeInvalidSignature, "invalid signature")
	}

	addressHash := addr.Hash()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("address_hash", addressHash.Short()))

	// Fail fast before the external call; the store re-checks atomically.
	existing, err := s.precheck(ctx, caller, addressHash)
	if err != nil {
		return models.ScoreResult{}, err
	}
	if refreshOnly && existing == nil {
		return models.ScoreResult{}, dErrors.New(dErrors.CodeNotFound, "address is not linked")
	}

	score, err := s.fetchScore(ctx, addr)
	if err != nil {
		return models.ScoreResult{}, err
	}

	now := requestcontext.Now(ctx)
	link, err := s.store.Link(ctx, caller, addressHash, score, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.ScoreResult{}, dErrors.Wrap(err, dErrors.CodeAlreadyLinked, "principal or address already registered")
		}
		return models.ScoreResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store link")
	}

	action := audit.ActionScoreRefreshed
	if existing == nil {
		action = audit.ActionAddressLinked
		s.metrics.IncrementNewLinks()
	}
	s.auditor.Emit(ctx, audit.Event{
		Action:    action,
		Principal: caller.String(),
		Detail:    map[string]string{"address_hash": addressHash.Short()},
	})
	s.logger.InfoContext(ctx, "address linked",
		"request_id", requestcontext.RequestID(ctx),
		"principal", caller.String(),
		"address_hash", addressHash.Short(),
		"refresh", existing != nil,
	)

	return models.ScoreResult{Score: link.Score, UpdatedAt: link.UpdatedAt}, nil
}

// precheck returns the caller's existing link to exactly this address, nil
// when neither side is linked, or AlreadyLinked on any other combination.
func (s *Service) precheck(ctx context.Context, caller domain.Principal, addressHash eth.AddressHash) (*models.Link, error) {
	existing, err := s.store.Get(ctx, caller)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read link")
	}
	owner, err := s.store.PrincipalByAddress(ctx, addressHash)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read link")
	}
	addressLinked := err == nil

	switch {
	case existing != nil && existing.Matches(caller, addressHash) && addressLinked && owner.Equal(caller):
		return existing, nil
	case existing != nil || addressLinked:
		return nil, dErrors.New(dErrors.CodeAlreadyLinked, "principal or address already registered")
	}
	return nil, nil
}

func (s *Service) fetchScore(ctx context.Context, addr eth.Address) (float64, error) {
	if s.scoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.scoreTimeout)
		defer cancel()
	}
	score, err := s.scores.Score(ctx, addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, dErrors.Wrap(err, dErrors.CodeTimeout, "score lookup timed out")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeUpstream, "score lookup failed")
	}
	return score, nil
}

// LookupScore returns the caller's cached score.
func (s *Service) LookupScore(ctx context.Context, caller domain.Principal) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "linkage.LookupScore")
	defer span.End()

	score, err := s.store.Score(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "no score linked to caller")
		}
		span.SetStatus(codes.Error, err.Error())
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read score")
	}
	return score, nil
}

// LookupScoreByAddress returns the caller's score if address is linked to
// the caller.
func (s *Service) LookupScoreByAddress(ctx context.Context, caller domain.Principal, address string) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "linkage.LookupScoreByAddress")
	defer span.End()

	addr, err := eth.ParseAddress(address)
	if err != nil {
		return 0, err
	}
	owner, err := s.store.PrincipalByAddress(ctx, addr.Hash())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "address is not linked")
		}
		span.SetStatus(codes.Error, err.Error())
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read link")
	}
	if !owner.Equal(caller) {
		return 0, dErrors.New(dErrors.CodeNotLinkedToCaller, "address is not linked to caller")
	}
	return s.LookupScore(ctx, caller)
}

func (s *Service) finish(ctx context.Context, span trace.Span, operation string, err error) {
	if err == nil {
		s.metrics.IncrementOutcome(operation, "ok")
		return
	}
	code := dErrors.CodeOf(err)
	s.metrics.IncrementOutcome(operation, string(code))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	if dErrors.Category(code) == dErrors.KindInternal {
		s.logger.ErrorContext(ctx, operation+" failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
