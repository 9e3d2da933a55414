package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scorevc/internal/audit"
	"scorevc/internal/certified/assets"
	"scorevc/internal/certified/platform"
	"scorevc/internal/certified/sigmap"
	"scorevc/internal/certified/state"
	"scorevc/internal/vc"
	"scorevc/internal/vc/models"
	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
	"scorevc/pkg/platform/sentinel"
	"scorevc/pkg/requestcontext"
	"scorevc/pkg/testutil"
)

const provider = "https://identity.ic0.app/"

type fakeScores struct {
	scores map[string]float64
	err    error
}

func (f *fakeScores) Score(_ context.Context, p domain.Principal) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	score, ok := f.scores[p.String()]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return score, nil
}

type IssuanceSuite struct {
	suite.Suite
	idp      *testutil.IdentityProvider
	scores   *fakeScores
	events   *audit.InMemoryStore
	platform *platform.Platform
	tree     *state.Tree
	service  *Service
	issuer   domain.Principal
	dapp     domain.Principal
	alias    domain.Principal
	now      time.Time
	ctx      context.Context
}

func TestIssuanceSuite(t *testing.T) {
	suite.Run(t, new(IssuanceSuite))
}

func (s *IssuanceSuite) SetupTest() {
	s.issuer = domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	s.dapp = domain.MustPrincipal("aaaaa-aa")
	s.alias = domain.MustPrincipal("2vxsx-fae")
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.idp = testutil.NewIdentityProvider(s.T(), provider)
	verifier, err := vc.NewAliasVerifier(provider, s.idp.PublicKeyPEM(s.T()))
	s.Require().NoError(err)

	p, err := platform.New(s.issuer, bytes.Repeat([]byte{3}, 32))
	s.Require().NoError(err)
	s.platform = p
	s.tree, err = state.New(assets.New(), sigmap.New(time.Minute), p)
	s.Require().NoError(err)

	s.scores = &fakeScores{scores: map[string]float64{}}
	s.events = audit.NewInMemoryStore()
	s.service = New(verifier, s.scores, s.tree, Issuer{
		ID:                  s.issuer,
		URL:                 "https://issuer.example",
		CredentialIDBaseURL: "https://issuer.example/credentials#",
		DerivationOrigin:    "https://issuer.example",
	},
		WithAuditor(audit.NewPublisher(s.events, nil)),
		WithIDGenerator(func() string { return "fixed" }),
	)
}

func (s *IssuanceSuite) signedAlias() vc.SignedIDAlias {
	return vc.SignedIDAlias{CredentialJWS: s.idp.IDAlias(s.T(), s.dapp.String(), s.alias.String(), s.now.Add(-time.Minute), time.Hour)}
}

func spec(minScore int64) vc.CredentialSpec {
	return vc.CredentialSpec{
		CredentialType: "GitcoinPassportScore",
		Arguments:      map[string]vc.ArgumentValue{"minScore": vc.IntArg(minScore)},
	}
}

func (s *IssuanceSuite) prepare(minScore int64) (models.PreparedCredential, error) {
	return s.service.Prepare(s.ctx, s.dapp, models.PrepareRequest{SignedIDAlias: s.signedAlias(), CredentialSpec: spec(minScore)})
}

func (s *IssuanceSuite) fetch(ctx context.Context, minScore int64, token string) (models.IssuedCredential, error) {
	return s.service.GetCredential(ctx, s.dapp, models.GetCredentialRequest{
		SignedIDAlias:   s.signedAlias(),
		CredentialSpec:  spec(minScore),
		PreparedContext: token,
	})
}

func (s *IssuanceSuite) verificationKey() vc.VerificationKey {
	return vc.VerificationKey{RootKey: s.platform.RootPublicKey(), IssuerID: s.issuer}
}

func (s *IssuanceSuite) TestPrepareAndFetch() {
	s.scores.scores[s.dapp.String()] = 72.4

	prepared, err := s.prepare(50)
	s.Require().NoError(err)
	s.NotEmpty(prepared.PreparedContext)
	s.Equal(1, s.tree.PendingSignatures())

	issued, err := s.fetch(s.ctx, 50, prepared.PreparedContext)
	s.Require().NoError(err)

	claims, err := vc.ParseCredential(issued.VCJWS, s.verificationKey(), s.now)
	s.Require().NoError(err)
	s.Equal("did:icp:"+s.alias.String(), claims.Subject, "credential is issued to the alias, not the caller")
	s.Equal("https://issuer.example/credentials#fixed", claims.ID)
	s.Equal(s.now.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
	s.Equal(map[string]any{"minScore": float64(50)}, claims.VC.CredentialSubject["GitcoinPassportScore"], "the exact score is never disclosed")

	events := s.events.ListByPrincipal(s.ctx, s.dapp.String())
	s.Require().Len(events, 2)
	s.Equal(audit.ActionCredentialPrepared, events[0].Action)
	s.Equal(audit.ActionCredentialFetched, events[1].Action)
	s.Equal("50", events[0].Detail["min_score"])
}

func (s *IssuanceSuite) TestScoreBelowMinimum() {
	s.scores.scores[s.dapp.String()] = 49.9
	root := s.tree.RootHash()

	_, err := s.prepare(50)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedSubject), "got %v", err)
	s.Equal(0, s.tree.PendingSignatures())
	s.Equal(root, s.tree.RootHash())

	s.scores.scores[s.dapp.String()] = 50.0
	_, err = s.prepare(50)
	s.NoError(err)
}

func (s *IssuanceSuite) TestNoLinkedScore() {
	_, err := s.prepare(1)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedSubject))
}

func (s *IssuanceSuite) TestScoreReadFailure() {
	s.scores.err = errors.New("connection reset")
	_, err := s.prepare(1)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(0, s.tree.PendingSignatures())
}

func (s *IssuanceSuite) TestGatesRunInOrder() {
	s.scores.scores[s.dapp.String()] = 99

	_, err := s.service.Prepare(s.ctx, s.dapp, models.PrepareRequest{
		SignedIDAlias:  vc.SignedIDAlias{CredentialJWS: "garbage"},
		CredentialSpec: vc.CredentialSpec{CredentialType: "Unknown"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidIDAlias), "alias is checked before the spec")

	_, err = s.service.Prepare(s.ctx, s.dapp, models.PrepareRequest{
		SignedIDAlias:  s.signedAlias(),
		CredentialSpec: vc.CredentialSpec{CredentialType: "Unknown"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedCredentialSpec))

	_, err = s.service.Prepare(s.ctx, domain.MustPrincipal("2vxsx-fae"), models.PrepareRequest{
		SignedIDAlias:  s.signedAlias(),
		CredentialSpec: spec(1),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidIDAlias), "alias issued to another caller")
	s.Equal(0, s.tree.PendingSignatures())
}

func (s *IssuanceSuite) TestFetchBeforePrepare() {
	token, err := vc.BuildCredentialJWT(vc.CredentialParams{
		CredentialType: "GitcoinPassportScore",
		MinScore:       50,
		Subject:        s.alias,
		CredentialID:   "https://issuer.example/credentials#fixed",
		IssuerURL:      "https://issuer.example",
		IssuedAt:       s.now,
		ExpiresAt:      s.now.Add(15 * time.Minute),
	})
	s.Require().NoError(err)

	_, err = s.fetch(s.ctx, 50, token)
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureNotFound), "got %v", err)
}

func (s *IssuanceSuite) TestFetchAfterExpiry() {
	s.scores.scores[s.dapp.String()] = 60
	prepared, err := s.prepare(50)
	s.Require().NoError(err)

	later := requestcontext.WithTime(context.Background(), s.now.Add(2*time.Minute))
	_, err = s.fetch(later, 50, prepared.PreparedContext)
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureNotFound), "got %v", err)
}

func (s *IssuanceSuite) TestFetchIsIdempotentAndReadOnly() {
	s.scores.scores[s.dapp.String()] = 60
	prepared, err := s.prepare(50)
	s.Require().NoError(err)

	root := s.tree.RootHash()
	first, err := s.fetch(s.ctx, 50, prepared.PreparedContext)
	s.Require().NoError(err)
	second, err := s.fetch(s.ctx, 50, prepared.PreparedContext)
	s.Require().NoError(err)

	s.Equal(first.VCJWS, second.VCJWS)
	s.Equal(root, s.tree.RootHash())
	s.Equal(1, s.tree.PendingSignatures())
}

func (s *IssuanceSuite) TestFetchRejectsBadContext() {
	s.scores.scores[s.dapp.String()] = 60
	prepared, err := s.prepare(50)
	s.Require().NoError(err)

	_, err = s.fetch(s.ctx, 50, "")
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureNotFound))

	_, err = s.fetch(s.ctx, 50, "garbage")
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureNotFound))

	parts := strings.Split(prepared.PreparedContext, ".")
	parts[1] = parts[1][:len(parts[1])-2]
	_, err = s.fetch(s.ctx, 50, strings.Join(parts, "."))
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureNotFound))

	_, err = s.fetch(s.ctx, 0, prepared.PreparedContext)
	s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedCredentialSpec))
}

func (s *IssuanceSuite) TestFetchForAnotherAlias() {
	s.scores.scores[s.dapp.String()] = 60
	prepared, err := s.prepare(50)
	s.Require().NoError(err)

	other := vc.SignedIDAlias{CredentialJWS: s.idp.IDAlias(s.T(), s.dapp.String(), "aaaaa-aa", s.now, time.Hour)}
	_, err = s.service.GetCredential(s.ctx, s.dapp, models.GetCredentialRequest{
		SignedIDAlias:   other,
		CredentialSpec:  spec(50),
		PreparedContext: prepared.PreparedContext,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureNotFound))
}

func (s *IssuanceSuite) TestSaltChangesSigningKey() {
	s.scores.scores[s.dapp.String()] = 60
	prepared, err := s.prepare(50)
	s.Require().NoError(err)

	salt, err := vc.DeriveSalt([]byte("rotated"))
	s.Require().NoError(err)
	verifier, err := vc.NewAliasVerifier(provider, s.idp.PublicKeyPEM(s.T()))
	s.Require().NoError(err)
	rotated := New(verifier, s.scores, s.tree, Issuer{ID: s.issuer}, WithSalt(salt))

	_, err = rotated.GetCredential(s.ctx, s.dapp, models.GetCredentialRequest{
		SignedIDAlias:   s.signedAlias(),
		CredentialSpec:  spec(50),
		PreparedContext: prepared.PreparedContext,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureNotFound))
}

func (s *IssuanceSuite) TestConsentMessageAndOrigin() {
	info, err := s.service.ConsentMessage(models.ConsentMessageRequest{
		CredentialSpec: spec(50),
		Preferences:    models.ConsentPreferences{Language: "en-US"},
	})
	s.Require().NoError(err)
	s.Contains(info.ConsentMessage, "Minimum Score: 50")

	_, err = s.service.ConsentMessage(models.ConsentMessageRequest{
		CredentialSpec: spec(50),
		Preferences:    models.ConsentPreferences{Language: "fr-FR"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedLanguage))

	origin, err := s.service.DerivationOrigin(models.DerivationOriginRequest{FrontendHostname: "https://issuer.example"})
	s.Require().NoError(err)
	s.Equal("https://issuer.example", origin.Origin)
}

func (s *IssuanceSuite) TestReplaceAssetsRecertifies() {
	before := s.service.CertifiedRoot()

	after, err := s.service.ReplaceAssets(s.ctx, map[string][]byte{"/index.html": []byte("<h1>issuer</h1>")})
	s.Require().NoError(err)
	s.NotEqual(before.RootHash, after.RootHash)

	certified, _, err := platform.VerifyCertificate(after.Certificate, s.platform.RootPublicKey(), s.issuer)
	s.Require().NoError(err)
	s.Equal(after.RootHash, certified.String())

	body, ok := s.service.Asset("/index.html")
	s.True(ok)
	s.Equal("<h1>issuer</h1>", string(body))

	events := s.events.ListRecent(s.ctx, 10)
	s.Require().NotEmpty(events)
	s.Equal(audit.ActionAssetsRecertified, events[len(events)-1].Action)
}
