package issuance

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cucumber/godog"

	"scorevc/internal/platform/config"
	"scorevc/internal/vc"
	"scorevc/pkg/domain"
)

// TestContext is what the credential issuance steps need.
type TestContext interface {
	IDAlias(alias string) string
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SetPrepared(token string)
	GetPrepared() string
	SetIssued(jws string)
	GetIssued() string
	VerificationKey() vc.VerificationKey
}

// RegisterSteps registers prepare, fetch and verification steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &issuanceSteps{tc: tc}

	ctx.Step(`^I prepare a credential with minScore (\d+) for alias "([^"]*)"$`, steps.prepare)
	ctx.Step(`^I have prepared a credential with minScore (\d+) for alias "([^"]*)"$`, steps.havePrepared)
	ctx.Step(`^I fetch the prepared credential$`, steps.fetch)
	ctx.Step(`^I fetch a credential for alias "([^"]*)" that was never prepared$`, steps.fetchUnprepared)
	ctx.Step(`^I request the consent message in "([^"]*)"$`, steps.consentMessage)
	ctx.Step(`^the issued credential should verify against the certified root$`, steps.issuedShouldVerify)
	ctx.Step(`^the credential subject should be "([^"]*)"$`, steps.subjectShouldBe)
}

type issuanceSteps struct {
	tc     TestContext
	alias  string
	spec   vc.CredentialSpec
	claims *vc.CredentialClaims
}

func scoreSpec(minScore int64) vc.CredentialSpec {
	return vc.CredentialSpec{
		CredentialType: config.CredentialType,
		Arguments:      map[string]vc.ArgumentValue{vc.MinScoreArgument: vc.IntArg(minScore)},
	}
}

func (s *issuanceSteps) prepare(_ context.Context, minScore int, alias string) error {
	s.alias, s.spec = alias, scoreSpec(int64(minScore))
	if err := s.tc.POST("/vc/prepare", map[string]any{
		"signed_id_alias": vc.SignedIDAlias{CredentialJWS: s.tc.IDAlias(alias)},
		"credential_spec": s.spec,
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 200 {
		prepared, err := s.tc.GetResponseField("prepared_context")
		if err != nil {
			return err
		}
		s.tc.SetPrepared(prepared.(string))
	}
	return nil
}

func (s *issuanceSteps) havePrepared(ctx context.Context, minScore int, alias string) error {
	if err := s.prepare(ctx, minScore, alias); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("prepare failed with %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *issuanceSteps) fetchWith(prepared string) error {
	if err := s.tc.POST("/vc/credential", map[string]any{
		"signed_id_alias":  vc.SignedIDAlias{CredentialJWS: s.tc.IDAlias(s.alias)},
		"credential_spec":  s.spec,
		"prepared_context": prepared,
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 200 {
		jws, err := s.tc.GetResponseField("vc_jws")
		if err != nil {
			return err
		}
		s.tc.SetIssued(jws.(string))
	}
	return nil
}

func (s *issuanceSteps) fetch(context.Context) error {
	return s.fetchWith(s.tc.GetPrepared())
}

func (s *issuanceSteps) fetchUnprepared(_ context.Context, alias string) error {
	s.alias, s.spec = alias, scoreSpec(50)
	return s.fetchWith("")
}

func (s *issuanceSteps) consentMessage(_ context.Context, language string) error {
	return s.tc.POST("/vc/consent-message", map[string]any{
		"credential_spec": scoreSpec(50),
		"preferences":     map[string]string{"language": language},
	})
}

func (s *issuanceSteps) issuedShouldVerify(context.Context) error {
	claims, err := vc.ParseCredential(s.tc.GetIssued(), s.tc.VerificationKey(), time.Now())
	if err != nil {
		return fmt.Errorf("issued credential does not verify: %w", err)
	}
	if !slices.Contains(claims.VC.Type, config.CredentialType) {
		return fmt.Errorf("credential types %v lack %s", claims.VC.Type, config.CredentialType)
	}
	s.claims = claims
	return nil
}

func (s *issuanceSteps) subjectShouldBe(_ context.Context, alias string) error {
	if s.claims == nil {
		return fmt.Errorf("no verified credential")
	}
	p, err := domain.ParsePrincipal(alias)
	if err != nil {
		return err
	}
	if want := vc.SubjectDID(p); s.claims.Subject != want {
		return fmt.Errorf("expected subject %s, got %s", want, s.claims.Subject)
	}
	return nil
}
