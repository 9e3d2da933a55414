// Package service implements two-phase credential issuance: prepare
// registers the credential hash in the certified state, fetch returns the
// credential together with its certified signature.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scorevc/internal/audit"
	"scorevc/internal/certified/hashtree"
	"scorevc/internal/certified/sigmap"
	"scorevc/internal/platform/config"
	"scorevc/internal/vc"
	"scorevc/internal/vc/metrics"
	"scorevc/internal/vc/models"
	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
	"scorevc/pkg/platform/sentinel"
	"scorevc/pkg/requestcontext"
)

// AliasVerifier checks id-alias assertions.
type AliasVerifier interface {
	Verify(alias vc.SignedIDAlias, caller domain.Principal, now time.Time) (vc.AliasTuple, error)
}

// ScoreReader returns a principal's linked score, or sentinel.ErrNotFound.
type ScoreReader interface {
	Score(ctx context.Context, principal domain.Principal) (float64, error)
}

// CertifiedState is the certified state holding pending signatures and the
// asset set. Every mutation must recertify before returning.
type CertifiedState interface {
	AddSignature(seed []byte, msgHash hashtree.Hash, now time.Time) error
	Signature(seed []byte, msgHash hashtree.Hash, now time.Time) (sigmap.Bundle, error)
	PendingSignatures() int
	CertifyAssets(files map[string][]byte) error
	Asset(path string) ([]byte, bool)
	RootHash() hashtree.Hash
	Certificate() []byte
}

// Issuer is the deployment identity stamped into credentials.
type Issuer struct {
	ID                  domain.Principal
	URL                 string
	CredentialIDBaseURL string
	DerivationOrigin    string
}

// Service issues score credentials.
type Service struct {
	aliases  AliasVerifier
	scores   ScoreReader
	state    CertifiedState
	issuer   Issuer
	salt     vc.Salt
	validity time.Duration
	newID    func() string
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithSalt sets the seed salt. The default is vc.PlaceholderSalt.
func WithSalt(salt vc.Salt) Option {
	return func(s *Service) { s.salt = salt }
}

// WithCredentialValidity overrides how long issued credentials stay valid.
func WithCredentialValidity(d time.Duration) Option {
	return func(s *Service) { s.validity = d }
}

// WithIDGenerator overrides the credential id suffix generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
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

func New(aliases AliasVerifier, scores ScoreReader, state CertifiedState, issuer Issuer, opts ...Option) *Service {
	s := &Service{
		aliases:  aliases,
		scores:   scores,
		state:    state,
		issuer:   issuer,
		salt:     vc.PlaceholderSalt,
		validity: config.CredentialValidity,
		newID:    uuid.NewString,
		logger:   slog.Default(),
		tracer:   otel.Tracer("scorevc/vc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// signing is everything derived from a prepared credential and its alias.
type signing struct {
	seed    [32]byte
	input   string
	msgHash hashtree.Hash
}

func (s *Service) signingFor(credentialJWT string, alias domain.Principal) (signing, error) {
	seed := vc.CalculateSeed(s.salt, alias)
	input, err := vc.SigningInput(credentialJWT, vc.SigningPublicKey{IssuerID: s.issuer.ID, Seed: seed[:]})
	if err != nil {
		return signing{}, err
	}
	return signing{seed: seed, input: input, msgHash: vc.MessageHash(input)}, nil
}

// Prepare verifies the alias, the spec and the caller's score, then
// registers the credential for signing. Nothing is written unless every
// check passes.
func (s *Service) Prepare(ctx context.Context, caller domain.Principal, req models.PrepareRequest) (models.PreparedCredential, error) {
	ctx, span := s.tracer.Start(ctx, "vc.Prepare")
	defer span.End()

	result, err := s.prepare(ctx, caller, req)
	s.finish(ctx, span, "prepare", err)
	return result, err
}

func (s *Service) prepare(ctx context.Context, caller domain.Principal, req models.PrepareRequest) (models.PreparedCredential, error) {
	now := requestcontext.Now(ctx)

	tuple, err := s.aliases.Verify(req.SignedIDAlias, caller, now)
	if err != nil {
		return models.PreparedCredential{}, ensureCode(err, dErrors.CodeInvalidIDAlias, "id alias could not be verified")
	}
	minScore, err := vc.ValidateSpec(req.CredentialSpec)
	if err != nil {
		return models.PreparedCredential{}, err
	}
	if err := s.authorize(ctx, caller, minScore); err != nil {
		return models.PreparedCredential{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("min_score", minScore))

	credentialJWT, err := vc.BuildCredentialJWT(vc.CredentialParams{
		CredentialType: req.CredentialSpec.CredentialType,
		MinScore:       minScore,
		Subject:        tuple.IDAlias,
		CredentialID:   s.issuer.CredentialIDBaseURL + s.newID(),
		IssuerURL:      s.issuer.URL,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.validity),
	})
	if err != nil {
		return models.PreparedCredential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build credential")
	}
	sig, err := s.signingFor(credentialJWT, tuple.IDAlias)
	if err != nil {
		return models.PreparedCredential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build signing input")
	}
	if err := s.state.AddSignature(sig.seed[:], sig.msgHash, now); err != nil {
		return models.PreparedCredential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to certify signature")
	}
	s.metrics.SetPendingSignatures(s.state.PendingSignatures())

	s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionCredentialPrepared,
		Principal: caller.String(),
		Detail:    credentialDetail(req.CredentialSpec.CredentialType, minScore),
	})
	s.logger.InfoContext(ctx, "credential prepared",
		"request_id", requestcontext.RequestID(ctx),
		"principal", caller.String(),
		"min_score", minScore,
	)
	return models.PreparedCredential{PreparedContext: credentialJWT}, nil
}

func (s *Service) authorize(ctx context.Context, caller domain.Principal, minScore int64) error {
	score, err := s.scores.Score(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorizedSubject, "no score linked to caller")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read score")
	}
	if score < float64(minScore) {
		return dErrors.New(dErrors.CodeUnauthorizedSubject, "score is below the requested minimum")
	}
	return nil
}

// GetCredential returns the signed credential for a prepared context. It
// never writes; calling it again returns the same credential until the
// signature expires.
func (s *Service) GetCredential(ctx context.Context, caller domain.Principal, req models.GetCredentialRequest) (models.IssuedCredential, error) {
	ctx, span := s.tracer.Start(ctx, "vc.GetCredential")
	defer span.End()

	result, err := s.getCredential(ctx, caller, req)
	s.finish(ctx, span, "fetch", err)
	return result, err
}

func (s *Service) getCredential(ctx context.Context, caller domain.Principal, req models.GetCredentialRequest) (models.IssuedCredential, error) {
	now := requestcontext.Now(ctx)

	tuple, err := s.aliases.Verify(req.SignedIDAlias, caller, now)
	if err != nil {
		return models.IssuedCredential{}, ensureCode(err, dErrors.CodeInvalidIDAlias, "id alias could not be verified")
	}
	minScore, err := vc.ValidateSpec(req.CredentialSpec)
	if err != nil {
		return models.IssuedCredential{}, err
	}
	if req.PreparedContext == "" {
		return models.IssuedCredential{}, dErrors.New(dErrors.CodeSignatureNotFound, "prepared context is required")
	}
	claims, err := vc.ParsePrepared(req.PreparedContext)
	if err != nil {
		return models.IssuedCredential{}, dErrors.Wrap(err, dErrors.CodeSignatureNotFound, "prepared context is malformed")
	}
	if claims.Subject != vc.SubjectDID(tuple.IDAlias) || !slices.Contains(claims.VC.Type, req.CredentialSpec.CredentialType) {
		return models.IssuedCredential{}, dErrors.New(dErrors.CodeSignatureNotFound, "prepared context does not match the request")
	}

	sig, err := s.signingFor(req.PreparedContext, tuple.IDAlias)
	if err != nil {
		return models.IssuedCredential{}, dErrors.Wrap(err, dErrors.CodeSignatureNotFound, "prepared context is malformed")
	}
	bundle, err := s.state.Signature(sig.seed[:], sig.msgHash, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return models.IssuedCredential{}, dErrors.Wrap(err, dErrors.CodeSignatureNotFound, "signature not found")
		}
		return models.IssuedCredential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read signature")
	}
	jws, err := vc.AssembleJWS(sig.input, bundle)
	if err != nil {
		return models.IssuedCredential{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assemble credential")
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionCredentialFetched,
		Principal: caller.String(),
		Detail:    credentialDetail(req.CredentialSpec.CredentialType, minScore),
	})
	return models.IssuedCredential{VCJWS: jws}, nil
}

// CertifiedRoot returns the current root and the certificate over it.
func (s *Service) CertifiedRoot() models.CertifiedRoot {
	return models.CertifiedRoot{RootHash: s.state.RootHash().String(), Certificate: s.state.Certificate()}
}

// Asset returns a certified asset body.
func (s *Service) Asset(path string) ([]byte, bool) {
	return s.state.Asset(path)
}

// ReplaceAssets swaps the certified asset set and recertifies.
func (s *Service) ReplaceAssets(ctx context.Context, files map[string][]byte) (models.CertifiedRoot, error) {
	if err := s.state.CertifyAssets(files); err != nil {
		return models.CertifiedRoot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to certify assets")
	}
	root := s.CertifiedRoot()
	s.auditor.Emit(ctx, audit.Event{
		Action: audit.ActionAssetsRecertified,
		Detail: map[string]string{"assets": strconv.Itoa(len(files)), "root_hash": root.RootHash},
	})
	s.logger.InfoContext(ctx, "assets recertified",
		"request_id", requestcontext.RequestID(ctx),
		"assets", len(files),
		"root_hash", root.RootHash,
	)
	return root, nil
}

// ConsentMessage renders the disclosure for a credential spec.
func (s *Service) ConsentMessage(req models.ConsentMessageRequest) (vc.ConsentInfo, error) {
	return vc.ConsentMessage(req.CredentialSpec, req.Preferences.Language)
}

// DerivationOrigin returns the origin holders derive their alias under.
func (s *Service) DerivationOrigin(_ models.DerivationOriginRequest) (models.DerivationOrigin, error) {
	return models.DerivationOrigin{Origin: s.issuer.DerivationOrigin}, nil
}

func credentialDetail(credentialType string, minScore int64) map[string]string {
	return map[string]string{
		"credential_type": credentialType,
		"min_score":       strconv.FormatInt(minScore, 10),
	}
}

// ensureCode keeps an existing code and otherwise wraps err with code.
func ensureCode(err error, code dErrors.Code, message string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, code, message)
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
