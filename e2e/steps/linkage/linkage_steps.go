package linkage

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is what the address linkage steps need.
type TestContext interface {
	NewWallet(score string) error
	SetWalletScore(score string)
	SignLink() (string, error)
	WalletAddressText() string
	POST(path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers wallet and score linkage steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &linkageSteps{tc: tc}

	ctx.Step(`^a wallet with a passport score of "([^"]*)"$`, steps.walletWithScore)
	ctx.Step(`^the wallet's passport score changes to "([^"]*)"$`, steps.scoreChanges)
	ctx.Step(`^I link the wallet$`, steps.linkWallet)
	ctx.Step(`^I have linked the wallet$`, steps.haveLinkedWallet)
	ctx.Step(`^I refresh the wallet score$`, steps.refreshWallet)
	ctx.Step(`^I link the wallet with signature "([^"]*)"$`, steps.linkWithSignature)
}

type linkageSteps struct {
	tc TestContext
}

func (s *linkageSteps) walletWithScore(_ context.Context, score string) error {
	return s.tc.NewWallet(score)
}

func (s *linkageSteps) scoreChanges(_ context.Context, score string) error {
	s.tc.SetWalletScore(score)
	return nil
}

func (s *linkageSteps) post(path string) error {
	sig, err := s.tc.SignLink()
	if err != nil {
		return err
	}
	return s.tc.POST(path, map[string]string{
		"address":   s.tc.WalletAddressText(),
		"signature": sig,
	})
}

func (s *linkageSteps) linkWallet(context.Context) error {
	return s.post("/score/link")
}

func (s *linkageSteps) haveLinkedWallet(ctx context.Context) error {
	if err := s.linkWallet(ctx); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("link failed with %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *linkageSteps) refreshWallet(context.Context) error {
	return s.post("/score/refresh")
}

func (s *linkageSteps) linkWithSignature(_ context.Context, sig string) error {
	return s.tc.POST("/score/link", map[string]string{
		"address":   s.tc.WalletAddressText(),
		"signature": sig,
	})
}
