package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"scorevc/internal/platform/config"
)

func TestNew_RejectsMissingOrBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{})
	assert.ErrorContains(t, err, "not configured")

	_, err = New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis URL")
}
