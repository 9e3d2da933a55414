package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scorevc/pkg/domain"
)

func TestCaller_DefaultsToAnonymous(t *testing.T) {
	assert.True(t, Caller(context.Background()).IsAnonymous())

	p := domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	ctx := WithCaller(context.Background(), p)
	assert.Equal(t, p, Caller(ctx))
}

func TestNow_UsesInjectedTime(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	assert.Equal(t, fixed, Now(ctx))
}

func TestClientMetadata(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "10.0.0.1", "curl/8.0")
	ctx = WithClientAgent(ctx, "curl/unknown")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, "curl/unknown", ClientAgent(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
}
