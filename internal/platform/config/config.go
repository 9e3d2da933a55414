package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strs "scorevc/pkg/platform/strings"
)

// Credential protocol constants.
const (
	CredentialType          = "GitcoinPassportScore"
	CredentialValidity      = 15 * time.Minute
	SignatureValidity       = time.Minute
	SupportedConsentLang    = "en-US"
	DefaultScoreAPITimeout  = 30 * time.Second
	DefaultMaxPrunePerWrite = 50
	SessionAudience         = "scorevc"
)

// Linkage store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	MetricsAddr string
	LogLevel    string
	LogFormat   string

	JWTSigningKey string
	AdminToken    string

	Issuer   IssuerConfig
	Score    ScoreAPIConfig
	Linkage  LinkageConfig
	Redis    RedisConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	AssetDir  string
}

// IssuerConfig describes the deployment identity of the credential issuer.
type IssuerConfig struct {
	// ID is the issuer principal in textual form.
	ID                  string
	IssuerURL           string
	CredentialIDBaseURL string
	DerivationOrigin    string
	// IdentityProvider is the expected iss of id-alias assertions.
	IdentityProvider string
	// IdentityProviderKeyPEM is the PEM-encoded ES256 public key of the identity provider.
	IdentityProviderKeyPEM []byte
	// RootKeySeed seeds the platform root-of-trust Ed25519 key.
	RootKeySeed []byte
	// SeedSecret keys the seed-salt derivation. Empty means the placeholder salt.
	SeedSecret []byte
}

// ScoreAPIConfig configures the reputation score lookup.
type ScoreAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LinkageConfig selects the linkage persistence backend.
type LinkageConfig struct {
	Backend     string
	DatabaseURL string
}

// RedisConfig holds connection settings for the Redis linkage backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig selects the audit sink. No brokers means in-memory.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// RateLimitConfig sets per-caller budgets for the score and issuance routes.
// Budgets are shared across replicas through Redis when REDIS_URL is set.
type RateLimitConfig struct {
	Disabled bool
	Window   time.Duration
	Linkage  int
	Issuance int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("SCOREVC_ADDR", ":8080"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		AssetDir:      os.Getenv("ASSET_DIR"),
		Issuer: IssuerConfig{
			ID:                  envOr("ISSUER_ID", "rrkah-fqaaa-aaaaa-aaaaq-cai"),
			IssuerURL:           envOr("ISSUER_URL", "https://passport.issuer.example"),
			CredentialIDBaseURL: envOr("CREDENTIAL_ID_BASE_URL", "https://passport.issuer.example/credentials#"),
			DerivationOrigin:    os.Getenv("DERIVATION_ORIGIN"),
			IdentityProvider:    envOr("IDP_ISSUER", "https://identity.ic0.app/"),
			SeedSecret:          []byte(os.Getenv("SEED_SECRET")),
		},
		Score: ScoreAPIConfig{
			BaseURL: envOr("SCORE_API_URL", "https://passport-score-proxy.kristofer-977.workers.dev"),
			Timeout: DefaultScoreAPITimeout,
		},
		Linkage: LinkageConfig{
			Backend:     envOr("LINKAGE_BACKEND", BackendMemory),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			Topic: envOr("AUDIT_TOPIC", "scorevc.audit"),
		},
		RateLimit: RateLimitConfig{
			Disabled: os.Getenv("RATE_LIMIT_DISABLED") == "true",
			Window:   time.Minute,
			Linkage:  10,
			Issuance: 60,
		},
	}

	for key, dst := range map[string]*int{
		"RATE_LIMIT_LINKAGE":  &cfg.RateLimit.Linkage,
		"RATE_LIMIT_ISSUANCE": &cfg.RateLimit.Issuance,
	} {
		if raw := os.Getenv(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return Server{}, fmt.Errorf("invalid %s %q", key, raw)
			}
			*dst = n
		}
	}

	cfg.Audit.Brokers = strs.SplitList(os.Getenv("KAFKA_BROKERS"), ",")

	if raw := os.Getenv("SCORE_API_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Server{}, fmt.Errorf("invalid SCORE_API_TIMEOUT %q", raw)
		}
		cfg.Score.Timeout = d
	}

	if cfg.Issuer.DerivationOrigin == "" {
		cfg.Issuer.DerivationOrigin = cfg.Issuer.IssuerURL
	}

	rootSeed := os.Getenv("ROOT_KEY_SEED")
	if rootSeed == "" {
		// Development default; production deployments must set ROOT_KEY_SEED.
		rootSeed = strings.Repeat("07", 32)
	}
	seed, err := hex.DecodeString(rootSeed)
	if err != nil || len(seed) != 32 {
		return Server{}, fmt.Errorf("ROOT_KEY_SEED must be 32 hex-encoded bytes")
	}
	cfg.Issuer.RootKeySeed = seed

	switch {
	case os.Getenv("IDP_PUBLIC_KEY_PEM") != "":
		cfg.Issuer.IdentityProviderKeyPEM = []byte(os.Getenv("IDP_PUBLIC_KEY_PEM"))
	case os.Getenv("IDP_PUBLIC_KEY_FILE") != "":
		pem, err := os.ReadFile(os.Getenv("IDP_PUBLIC_KEY_FILE"))
		if err != nil {
			return Server{}, fmt.Errorf("read IDP_PUBLIC_KEY_FILE: %w", err)
		}
		cfg.Issuer.IdentityProviderKeyPEM = pem
	}

	switch cfg.Linkage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.Linkage.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required for the postgres linkage backend")
		}
	case BackendRedis:
		if cfg.Redis.URL == "" {
			return Server{}, fmt.Errorf("REDIS_URL is required for the redis linkage backend")
		}
	default:
		return Server{}, fmt.Errorf("unknown LINKAGE_BACKEND %q", cfg.Linkage.Backend)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
