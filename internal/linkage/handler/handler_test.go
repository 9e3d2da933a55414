package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"scorevc/internal/linkage/handler/mocks"
	"scorevc/internal/linkage/models"
	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
	"scorevc/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const (
	callerText = "rrkah-fqaaa-aaaaa-aaaaq-cai"
	address    = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	signature  = "0x" + "11111111111111111111111111111111111111111111111111111111111111112222222222222222222222222222222222222222222222222222222222222222" + "1b"
)

type LinkageHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	caller  domain.Principal
}

func TestLinkageHandlerSuite(t *testing.T) {
	suite.Run(t, new(LinkageHandlerSuite))
}

func (s *LinkageHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
	s.caller = domain.MustPrincipal(callerText)
}

func (s *LinkageHandlerSuite) do(req *http.Request, authenticated bool) *httptest.ResponseRecorder {
	if authenticated {
		req = testutil.WithCaller(req, callerText)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *LinkageHandlerSuite) TestLink() {
	updated := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.service.EXPECT().
		Link(gomock.Any(), s.caller, signature, address).
		Return(models.ScoreResult{Score: 31.25, UpdatedAt: updated}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/score/link", LinkRequest{Signature: signature, Address: " " + address + " "})
	rr := s.do(req, true)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[ScoreResponse](s.T(), rr)
	s.Equal(31.25, resp.Score)
	s.Require().NotNil(resp.UpdatedAt)
	s.True(updated.Equal(*resp.UpdatedAt))
}

func (s *LinkageHandlerSuite) TestLinkRequiresCaller() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/score/link", LinkRequest{Signature: signature, Address: address})
	rr := s.do(req, false)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *LinkageHandlerSuite) TestLinkValidation() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/score/link", LinkRequest{Address: address})
	rr := s.do(req, true)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))

	req = testutil.NewRequestWithBody(s.T(), http.MethodPost, "/score/link", "{not json")
	rr = s.do(req, true)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func (s *LinkageHandlerSuite) TestLinkErrorsMapToStatus() {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"already linked", dErrors.New(dErrors.CodeAlreadyLinked, "principal or address already registered"), http.StatusConflict},
		{"bad signature", dErrors.New(dErrors.CodeInvalidSignature, "invalid signature"), http.StatusUnauthorized},
		{"address format", dErrors.New(dErrors.CodeAddressFormat, "not EIP-55 encoded"), http.StatusBadRequest},
		{"upstream", dErrors.New(dErrors.CodeUpstream, "score lookup failed"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.service.EXPECT().Link(gomock.Any(), s.caller, signature, address).Return(models.ScoreResult{}, tt.err)
			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/score/link", LinkRequest{Signature: signature, Address: address})
			rr := s.do(req, true)
			testutil.AssertStatusAndError(s.T(), rr, tt.status, string(dErrors.CodeOf(tt.err)))
		})
	}
}

func (s *LinkageHandlerSuite) TestRefresh() {
	s.service.EXPECT().
		Refresh(gomock.Any(), s.caller, signature, address).
		Return(models.ScoreResult{Score: 2}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/score/refresh", LinkRequest{Signature: signature, Address: address})
	rr := s.do(req, true)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "score", 2.0)
}

func (s *LinkageHandlerSuite) TestLookups() {
	testutil.Given(s.T(), "a linked caller", func(t *testing.T) {
		s.service.EXPECT().LookupScore(gomock.Any(), s.caller).Return(12.0, nil)
		s.service.EXPECT().LookupScoreByAddress(gomock.Any(), s.caller, address).Return(12.0, nil)

		testutil.When(t, "the caller asks for its score", func(t *testing.T) {
			rr := s.do(testutil.NewRequest(t, http.MethodGet, "/score"), true)
			testutil.Then(t, "the cached score is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "score", 12.0)
			})
		})
		testutil.When(t, "the caller asks by address", func(t *testing.T) {
			rr := s.do(testutil.NewRequest(t, http.MethodGet, "/score/address/"+address), true)
			testutil.Then(t, "the same score is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "score", 12.0)
			})
		})
	})

	testutil.Given(s.T(), "an address linked to someone else", func(t *testing.T) {
		s.service.EXPECT().LookupScoreByAddress(gomock.Any(), s.caller, address).
			Return(0.0, dErrors.New(dErrors.CodeNotLinkedToCaller, "address is not linked to caller"))
		rr := s.do(testutil.NewRequest(t, http.MethodGet, "/score/address/"+address), true)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeNotLinkedToCaller))
	})
}

func (s *LinkageHandlerSuite) TestLinkMessage() {
	s.service.EXPECT().LinkMessage(s.caller, address).Return("Sign this message", nil)

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/score/link-message?address="+address), true)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "message", "Sign this message")
}
