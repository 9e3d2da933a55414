package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.Linkage.Backend)
	assert.Equal(t, DefaultScoreAPITimeout, cfg.Score.Timeout)
	assert.Len(t, cfg.Issuer.RootKeySeed, 32)
	assert.Equal(t, cfg.Issuer.IssuerURL, cfg.Issuer.DerivationOrigin)
	assert.Empty(t, cfg.Audit.Brokers)
	assert.False(t, cfg.RateLimit.Disabled)
	assert.Equal(t, 10, cfg.RateLimit.Linkage)
	assert.Equal(t, 60, cfg.RateLimit.Issuance)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SCOREVC_ADDR", ":9090")
	t.Setenv("SCORE_API_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("LINKAGE_BACKEND", BackendRedis)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RATE_LIMIT_LINKAGE", "3")
	t.Setenv("RATE_LIMIT_DISABLED", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.Score.Timeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, BackendRedis, cfg.Linkage.Backend)
	assert.Equal(t, 3, cfg.RateLimit.Linkage)
	assert.True(t, cfg.RateLimit.Disabled)
}

func TestFromEnv_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"bad timeout":     {"SCORE_API_TIMEOUT": "soon"},
		"short root seed": {"ROOT_KEY_SEED": "abcd"},
		"postgres no dsn": {"LINKAGE_BACKEND": BackendPostgres},
		"unknown backend": {"LINKAGE_BACKEND": "sqlite"},
		"bad rate limit":  {"RATE_LIMIT_ISSUANCE": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
