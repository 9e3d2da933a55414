package e2e

import (
	"context"
	"testing"

	"github.com/cucumber/godog"

	"scorevc/e2e/steps/common"
	"scorevc/e2e/steps/issuance"
	"scorevc/e2e/steps/linkage"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	linkage.RegisterSteps(ctx, tc)
	issuance.RegisterSteps(ctx, tc)
}

// InitializeScenario gives every scenario its own issuer instance.
func InitializeScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(sc *godog.ScenarioContext) {
		tc, err := newTestContext(t)
		if err != nil {
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				return ctx, err
			})
			return
		}
		sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
			tc.close()
			return ctx, err
		})
		RegisterSteps(sc, tc)
	}
}
