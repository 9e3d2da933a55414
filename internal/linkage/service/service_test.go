package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"scorevc/internal/audit"
	"scorevc/internal/eth"
	"scorevc/internal/linkage/store"
	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
	"scorevc/pkg/requestcontext"
)

type fakeScores struct {
	score float64
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeScores) Score(ctx context.Context, _ eth.Address) (float64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.score, f.err
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return wallet{key: key, address: eth.AddressFromPublicKey(&key.PublicKey).String()}
}

func (w wallet) sign(t *testing.T, principal domain.Principal) string {
	t.Helper()
	addr, err := eth.ParseAddress(w.address)
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	sig, err := eth.SignMessage(eth.LinkMessage(addr, principal), w.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig.String()
}

type LinkServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	scores  *fakeScores
	events  *audit.InMemoryStore
	service *Service
	ctx     context.Context
	alice   domain.Principal
	bob     domain.Principal
}

func TestLinkServiceSuite(t *testing.T) {
	suite.Run(t, new(LinkServiceSuite))
}

func (s *LinkServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.scores = &fakeScores{score: 27.5}
	s.events = audit.NewInMemoryStore()
	s.service = New(s.store, s.scores,
		WithAuditor(audit.NewPublisher(s.events, nil)),
		WithScoreTimeout(time.Second),
	)
	s.alice = domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	s.bob = domain.MustPrincipal("aaaaa-aa")
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
}

func (s *LinkServiceSuite) TestLinkThenLookup() {
	w := newWallet(s.T())

	result, err := s.service.Link(s.ctx, s.alice, w.sign(s.T(), s.alice), w.address)
	s.Require().NoError(err)
	s.Equal(27.5, result.Score)

	score, err := s.service.LookupScore(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(27.5, score)

	score, err = s.service.LookupScoreByAddress(s.ctx, s.alice, w.address)
	s.Require().NoError(err)
	s.Equal(27.5, score)

	events := s.events.ListByPrincipal(s.ctx, s.alice.String())
	s.Require().Len(events, 1)
	s.Equal(audit.ActionAddressLinked, events[0].Action)
	s.NotContains(events[0].Detail["address_hash"], w.address)
}

func (s *LinkServiceSuite) TestRelinkSamePairRefreshesScore() {
	w := newWallet(s.T())
	sig := w.sign(s.T(), s.alice)
	_, err := s.service.Link(s.ctx, s.alice, sig, w.address)
	s.Require().NoError(err)

	s.scores.score = 60
	result, err := s.service.Link(s.ctx, s.alice, sig, w.address)
	s.Require().NoError(err)
	s.Equal(60.0, result.Score)
}

func (s *LinkServiceSuite) TestRefresh() {
	w := newWallet(s.T())
	sig := w.sign(s.T(), s.alice)

	_, err := s.service.Refresh(s.ctx, s.alice, sig, w.address)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Zero(s.scores.calls.Load())

	_, err = s.service.Link(s.ctx, s.alice, sig, w.address)
	s.Require().NoError(err)

	s.scores.score = 3
	result, err := s.service.Refresh(s.ctx, s.alice, sig, w.address)
	s.Require().NoError(err)
	s.Equal(3.0, result.Score)

	events := s.events.ListByPrincipal(s.ctx, s.alice.String())
	s.Require().Len(events, 2)
	s.Equal(audit.ActionScoreRefreshed, events[1].Action)
}

func (s *LinkServiceSuite) TestConflictsFailBeforeScoreLookup() {
	w1 := newWallet(s.T())
	w2 := newWallet(s.T())
	_, err := s.service.Link(s.ctx, s.alice, w1.sign(s.T(), s.alice), w1.address)
	s.Require().NoError(err)
	callsBefore := s.scores.calls.Load()

	s.Run("principal linked to another address", func() {
		_, err := s.service.Link(s.ctx, s.alice, w2.sign(s.T(), s.alice), w2.address)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLinked))
	})
	s.Run("address linked to another principal", func() {
		_, err := s.service.Link(s.ctx, s.bob, w1.sign(s.T(), s.bob), w1.address)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLinked))
	})
	s.Equal(callsBefore, s.scores.calls.Load())
}

func (s *LinkServiceSuite) TestSignatureChecks() {
	w := newWallet(s.T())
	other := newWallet(s.T())

	s.Run("signature by another key", func() {
		_, err := s.service.Link(s.ctx, s.alice, other.sign(s.T(), s.alice), w.address)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})
	s.Run("signature for another principal", func() {
		_, err := s.service.Link(s.ctx, s.alice, w.sign(s.T(), s.bob), w.address)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})
	s.Run("malformed address", func() {
		_, err := s.service.Link(s.ctx, s.alice, w.sign(s.T(), s.alice), "0x123")
		s.True(dErrors.HasCode(err, dErrors.CodeAddressFormat))
	})
	s.Run("malformed signature", func() {
		_, err := s.service.Link(s.ctx, s.alice, "0xdead", w.address)
		s.True(dErrors.HasCode(err, dErrors.CodeSignatureFormat))
	})
	s.Run("anonymous caller", func() {
		_, err := s.service.Link(s.ctx, domain.AnonymousPrincipal, w.sign(s.T(), domain.AnonymousPrincipal), w.address)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	_, err := s.service.LookupScore(s.ctx, s.alice)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LinkServiceSuite) TestScoreFailuresWriteNothing() {
	w := newWallet(s.T())

	s.Run("upstream error", func() {
		s.scores.err = errors.New("boom")
		_, err := s.service.Link(s.ctx, s.alice, w.sign(s.T(), s.alice), w.address)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	})
	s.Run("timeout", func() {
		s.scores.err = nil
		s.scores.delay = time.Second
		svc := New(s.store, s.scores, WithScoreTimeout(10*time.Millisecond))
		_, err := svc.Link(s.ctx, s.alice, w.sign(s.T(), s.alice), w.address)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	_, err := s.store.Get(s.ctx, s.alice)
	s.Error(err)
}

func (s *LinkServiceSuite) TestLookupScoreByAddress() {
	w := newWallet(s.T())
	other := newWallet(s.T())
	_, err := s.service.Link(s.ctx, s.alice, w.sign(s.T(), s.alice), w.address)
	s.Require().NoError(err)

	_, err = s.service.LookupScoreByAddress(s.ctx, s.bob, w.address)
	s.True(dErrors.HasCode(err, dErrors.CodeNotLinkedToCaller))

	_, err = s.service.LookupScoreByAddress(s.ctx, s.alice, other.address)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LinkServiceSuite) TestLinkMessage() {
	w := newWallet(s.T())
	msg, err := s.service.LinkMessage(s.alice, w.address)
	s.Require().NoError(err)
	s.Contains(msg, "Ethereum address: "+w.address)
	s.Contains(msg, "Internet Computer principal: "+s.alice.String())
}
