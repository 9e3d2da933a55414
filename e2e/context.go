// Package e2e runs Gherkin scenarios against an in-process issuer backed by
// a fake score API and a test identity provider.
package e2e

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"

	"scorevc/internal/eth"
	jwttoken "scorevc/internal/jwt_token"
	"scorevc/internal/platform/config"
	"scorevc/internal/server"
	"scorevc/internal/vc"
	"scorevc/pkg/domain"
	"scorevc/pkg/testutil"
)

const (
	issuerText  = "rrkah-fqaaa-aaaaa-aaaaq-cai"
	idpIssuer   = "https://identity.test/"
	signingKey  = "e2e-session-key"
	adminToken  = "e2e-admin"
	issuerURL   = "https://issuer.test"
	requestWait = 10 * time.Second
)

var rootKeySeed = bytes.Repeat([]byte{7}, ed25519.SeedSize)

// TestContext holds one scenario's server, identities and last response.
type TestContext struct {
	t        *testing.T
	app      *server.App
	server   *httptest.Server
	scoreAPI *httptest.Server
	idp      *testutil.IdentityProvider
	sessions *jwttoken.JWTService
	issuerID domain.Principal

	mu     sync.Mutex
	scores map[string]string

	caller     domain.Principal
	token      string
	wallet     *ecdsa.PrivateKey
	lastStatus int
	lastBody   []byte
	prepared   string
	issued     string
}

// limits keeps the rate-limit budgets small enough to exhaust in a scenario.
var limits = config.RateLimitConfig{Window: time.Minute, Linkage: 8, Issuance: 20}

func newTestContext(t *testing.T) (*TestContext, error) {
	tc := &TestContext{
		t:        t,
		idp:      testutil.NewIdentityProvider(t, idpIssuer),
		sessions: jwttoken.NewJWTService(signingKey, issuerURL, config.SessionAudience),
		issuerID: domain.MustPrincipal(issuerText),
		scores:   map[string]string{},
	}
	tc.scoreAPI = httptest.NewServer(tc.scoreHandler())

	cfg := config.Server{
		JWTSigningKey: signingKey,
		AdminToken:    adminToken,
		Issuer: config.IssuerConfig{
			ID:                     issuerText,
			IssuerURL:              issuerURL,
			CredentialIDBaseURL:    issuerURL + "/credentials#",
			DerivationOrigin:       issuerURL,
			IdentityProvider:       idpIssuer,
			IdentityProviderKeyPEM: tc.idp.PublicKeyPEM(t),
			RootKeySeed:            rootKeySeed,
			SeedSecret:             []byte("e2e-seed-secret"),
		},
		Score:     config.ScoreAPIConfig{BaseURL: tc.scoreAPI.URL, Timeout: 5 * time.Second},
		Linkage:   config.LinkageConfig{Backend: config.BackendMemory},
		RateLimit: limits,
	}
	app, err := server.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tc.scoreAPI.Close()
		return nil, err
	}
	tc.app = app
	tc.server = httptest.NewServer(app.Handler())
	return tc, nil
}

func (tc *TestContext) close() {
	tc.server.Close()
	tc.scoreAPI.Close()
	tc.app.Close(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (tc *TestContext) scoreHandler() http.Handler {
	r := chi.NewRouter()
	r.Get("/submit/{address}", func(w http.ResponseWriter, r *http.Request) {
		tc.mu.Lock()
		score, ok := tc.scores[strings.ToLower(chi.URLParam(r, "address"))]
		tc.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"score":%q}`, score)
	})
	return r
}

// SignIn mints a session token for principal.
func (tc *TestContext) SignIn(principal string) error {
	p, err := domain.ParsePrincipal(principal)
	if err != nil {
		return err
	}
	token, err := tc.sessions.GenerateAccessToken(p, time.Hour)
	if err != nil {
		return err
	}
	tc.caller, tc.token = p, token
	return nil
}

func (tc *TestContext) SignOut() {
	tc.caller, tc.token = domain.AnonymousPrincipal, ""
}

// NewWallet creates a key whose address the fake score API knows.
func (tc *TestContext) NewWallet(score string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	tc.wallet = key
	tc.SetWalletScore(score)
	return nil
}

func (tc *TestContext) SetWalletScore(score string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.scores[strings.ToLower(tc.WalletAddress().String())] = score
}

func (tc *TestContext) WalletAddress() eth.Address {
	return eth.AddressFromPublicKey(&tc.wallet.PublicKey)
}

func (tc *TestContext) WalletAddressText() string {
	return tc.WalletAddress().String()
}

// SignLink signs the link message for the current caller.
func (tc *TestContext) SignLink() (string, error) {
	sig, err := eth.SignMessage(eth.LinkMessage(tc.WalletAddress(), tc.caller), tc.wallet)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// IDAlias returns a fresh identity provider assertion that the caller owns alias.
func (tc *TestContext) IDAlias(alias string) string {
	return tc.idp.IDAlias(tc.t, tc.caller.String(), alias, time.Now().Add(-time.Minute), time.Hour)
}

func (tc *TestContext) Caller() domain.Principal {
	return tc.caller
}

func (tc *TestContext) POST(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(payload))
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestWait)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, tc.server.URL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

// GetResponseField decodes the last body and returns a top-level field.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("decode response: %w (body %s)", err, tc.lastBody)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) SetPrepared(token string) { tc.prepared = token }
func (tc *TestContext) GetPrepared() string      { return tc.prepared }
func (tc *TestContext) SetIssued(jws string)     { tc.issued = jws }
func (tc *TestContext) GetIssued() string        { return tc.issued }

// VerificationKey is what a relying party needs to check issued credentials.
func (tc *TestContext) VerificationKey() vc.VerificationKey {
	return vc.VerificationKey{
		RootKey:  ed25519.NewKeyFromSeed(rootKeySeed).Public().(ed25519.PublicKey),
		IssuerID: tc.issuerID,
	}
}
