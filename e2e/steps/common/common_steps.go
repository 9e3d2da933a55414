package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is what the generic request and assertion steps need.
type TestContext interface {
	SignIn(principal string) error
	SignOut()
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers sign-in, raw request and response assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^I am not signed in$`, steps.notSignedIn)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I GET "([^"]*)" (\d+) times$`, steps.getNTimes)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBeString)
	ctx.Step(`^the response field "([^"]*)" should be ([0-9.]+)$`, steps.fieldShouldBeNumber)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.fieldShouldExist)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) signedInAs(_ context.Context, principal string) error {
	return s.tc.SignIn(principal)
}

func (s *commonSteps) notSignedIn(context.Context) error {
	s.tc.SignOut()
	return nil
}

func (s *commonSteps) get(_ context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) getNTimes(_ context.Context, path string, n int) error {
	for range n {
		if err := s.tc.GET(path); err != nil {
			return err
		}
	}
	return nil
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldBeString(ctx, "error", want)
}

func (s *commonSteps) fieldShouldBeString(_ context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got, ok := v.(string); !ok || got != want {
		return fmt.Errorf("expected %s %q, got %v", field, want, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeNumber(_ context.Context, field, raw string) error {
	want, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got, ok := v.(float64); !ok || got != want {
		return fmt.Errorf("expected %s %v, got %v", field, want, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldExist(_ context.Context, field string) error {
	_, err := s.tc.GetResponseField(field)
	return err
}
