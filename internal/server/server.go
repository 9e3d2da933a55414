// Package server assembles the issuer's HTTP application from configuration.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"scorevc/internal/audit"
	"scorevc/internal/certified/assets"
	"scorevc/internal/certified/platform"
	"scorevc/internal/certified/sigmap"
	"scorevc/internal/certified/state"
	jwttoken "scorevc/internal/jwt_token"
	linkagehandler "scorevc/internal/linkage/handler"
	linkagemetrics "scorevc/internal/linkage/metrics"
	linkageservice "scorevc/internal/linkage/service"
	linkagestore "scorevc/internal/linkage/store"
	"scorevc/internal/passport"
	"scorevc/internal/platform/config"
	"scorevc/internal/platform/kafka"
	platformmetrics "scorevc/internal/platform/metrics"
	"scorevc/internal/platform/middleware"
	"scorevc/internal/platform/postgres"
	platformredis "scorevc/internal/platform/redis"
	ratelimitmetrics "scorevc/internal/ratelimit/metrics"
	ratelimitmw "scorevc/internal/ratelimit/middleware"
	ratelimitmodels "scorevc/internal/ratelimit/models"
	ratelimitstore "scorevc/internal/ratelimit/store"
	"scorevc/internal/vc"
	vchandler "scorevc/internal/vc/handler"
	vcmetrics "scorevc/internal/vc/metrics"
	vcservice "scorevc/internal/vc/service"
	"scorevc/pkg/domain"
	"scorevc/pkg/platform/circuit"
	"scorevc/pkg/platform/httputil"
	authmw "scorevc/pkg/platform/middleware/auth"
	"scorevc/pkg/platform/middleware/metadata"
	"scorevc/pkg/platform/middleware/requesttime"
)

// linkageStore is what both the linkage and issuance services need from
// the persistence backend.
type linkageStore interface {
	linkageservice.Store
	vcservice.ScoreReader
}

// App owns the router and every backend connection opened for it.
type App struct {
	router   http.Handler
	registry *prometheus.Registry
	redis    *platformredis.Client
	db       *sql.DB
	ready    []func(context.Context) error
	closers  []func() error
}

// New connects the configured backends and builds the router. On error,
// anything already opened is closed.
func New(ctx context.Context, cfg config.Server, log *slog.Logger) (a *App, err error) {
	a = &App{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close(log)
		}
	}()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	issuerID, err := domain.ParsePrincipal(cfg.Issuer.ID)
	if err != nil {
		return nil, fmt.Errorf("ISSUER_ID: %w", err)
	}

	auditor, err := a.newAuditor(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	links, err := a.newLinkageStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	scores := passport.New(cfg.Score.BaseURL,
		passport.WithTimeout(cfg.Score.Timeout),
		passport.WithBreaker(circuit.New("passport", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))),
		passport.WithMetrics(passport.NewMetrics(a.registry)),
		passport.WithLogger(log),
	)
	linkage := linkageservice.New(links, scores,
		linkageservice.WithScoreTimeout(cfg.Score.Timeout),
		linkageservice.WithAuditor(auditor),
		linkageservice.WithMetrics(linkagemetrics.New(a.registry)),
		linkageservice.WithLogger(log),
	)

	tree, err := newCertifiedState(cfg, issuerID, log)
	if err != nil {
		return nil, err
	}
	issuance, err := newIssuance(cfg, issuerID, links, tree, auditor, a.registry, log)
	if err != nil {
		return nil, err
	}

	limiter, err := a.newRateLimiter(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	sessions := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.Issuer.IssuerURL, config.SessionAudience)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.LatencyMiddleware(platformmetrics.New(a.registry)))
	r.Use(middleware.Timeout(cfg.Score.Timeout + 5*time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(authmw.Authenticate(jwttoken.NewJWTServiceAdapter(sessions), log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", a.handleReady(log))
	linkagehandler.New(linkage, log).Register(r.With(limiter.Limit(ratelimitmodels.ClassLinkage)))
	vchandler.New(issuance, cfg.AdminToken, log,
		vchandler.WithRateLimit(limiter.Limit(ratelimitmodels.ClassIssuance)),
	).Register(r)

	a.router = r
	return a, nil
}

func (a *App) newAuditor(ctx context.Context, cfg config.Server, log *slog.Logger) (*audit.Publisher, error) {
	if len(cfg.Audit.Brokers) == 0 {
		if cfg.Linkage.Backend == config.BackendPostgres {
			db, err := a.postgresDB(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return audit.NewPublisher(audit.NewPostgresStore(db), log), nil
		}
		return audit.NewPublisher(audit.NewInMemoryStore(), log), nil
	}
	client, err := kafka.New(ctx, cfg.Audit.Brokers, cfg.Audit.Topic)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	a.ready = append(a.ready, client.Ping)
	return audit.NewPublisher(audit.NewKafkaStore(client, cfg.Audit.Topic), log), nil
}

func (a *App) newLinkageStore(ctx context.Context, cfg config.Server) (linkageStore, error) {
	switch cfg.Linkage.Backend {
	case config.BackendPostgres:
		db, err := a.postgresDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return linkagestore.NewPostgres(db), nil
	case config.BackendRedis:
		client, err := a.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return linkagestore.NewRedis(client.Client), nil
	default:
		return linkagestore.NewInMemory(), nil
	}
}

// postgresDB opens and migrates the pool once; the linkage store and the
// audit sink share it.
func (a *App) postgresDB(ctx context.Context, cfg config.Server) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.Open(ctx, cfg.Linkage.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, err
	}
	a.db = db
	a.ready = append(a.ready, db.PingContext)
	return db, nil
}

// redisClient connects once and shares the client between the linkage
// store and the rate limiter.
func (a *App) redisClient(ctx context.Context, cfg config.Server) (*platformredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	a.ready = append(a.ready, client.Health)
	return client, nil
}

func (a *App) newRateLimiter(ctx context.Context, cfg config.Server, log *slog.Logger) (*ratelimitmw.Middleware, error) {
	var store ratelimitmw.Store = ratelimitstore.NewInMemory()
	if cfg.Redis.URL != "" && !cfg.RateLimit.Disabled {
		client, err := a.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = ratelimitstore.NewRedis(client.Client)
	}
	limits := map[ratelimitmodels.Class]ratelimitmodels.Limit{
		ratelimitmodels.ClassLinkage:  {Requests: cfg.RateLimit.Linkage, Window: cfg.RateLimit.Window},
		ratelimitmodels.ClassIssuance: {Requests: cfg.RateLimit.Issuance, Window: cfg.RateLimit.Window},
	}
	return ratelimitmw.New(store, limits, log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(ratelimitmetrics.New(a.registry)),
	), nil
}

func newCertifiedState(cfg config.Server, issuerID domain.Principal, log *slog.Logger) (*state.Tree, error) {
	plat, err := platform.New(issuerID, cfg.Issuer.RootKeySeed)
	if err != nil {
		return nil, err
	}
	sigs := sigmap.New(config.SignatureValidity, sigmap.WithMaxPrune(config.DefaultMaxPrunePerWrite))
	tree, err := state.New(assets.New(), sigs, plat)
	if err != nil {
		return nil, err
	}
	if cfg.AssetDir != "" {
		files, err := assets.LoadDir(cfg.AssetDir)
		if err != nil {
			return nil, err
		}
		if err := tree.CertifyAssets(files); err != nil {
			return nil, err
		}
		log.Info("certified assets loaded", "dir", cfg.AssetDir, "assets", len(files))
	}
	log.Info("certified state ready",
		"root_hash", tree.RootHash().String(),
		"root_public_key", fmt.Sprintf("%x", plat.RootPublicKey()),
	)
	return tree, nil
}

func newIssuance(
	cfg config.Server,
	issuerID domain.Principal,
	scores vcservice.ScoreReader,
	tree *state.Tree,
	auditor *audit.Publisher,
	reg prometheus.Registerer,
	log *slog.Logger,
) (*vcservice.Service, error) {
	if len(cfg.Issuer.IdentityProviderKeyPEM) == 0 {
		return nil, errors.New("IDP_PUBLIC_KEY_PEM or IDP_PUBLIC_KEY_FILE is required")
	}
	aliases, err := vc.NewAliasVerifier(cfg.Issuer.IdentityProvider, cfg.Issuer.IdentityProviderKeyPEM)
	if err != nil {
		return nil, err
	}

	salt := vc.PlaceholderSalt
	if len(cfg.Issuer.SeedSecret) > 0 {
		if salt, err = vc.DeriveSalt(cfg.Issuer.SeedSecret); err != nil {
			return nil, err
		}
	} else {
		log.Warn("SEED_SECRET is not set; credentials use the placeholder seed salt")
	}

	return vcservice.New(aliases, scores, tree, vcservice.Issuer{
		ID:                  issuerID,
		URL:                 cfg.Issuer.IssuerURL,
		CredentialIDBaseURL: cfg.Issuer.CredentialIDBaseURL,
		DerivationOrigin:    cfg.Issuer.DerivationOrigin,
	},
		vcservice.WithSalt(salt),
		vcservice.WithAuditor(auditor),
		vcservice.WithMetrics(vcmetrics.New(reg)),
		vcservice.WithLogger(log),
	), nil
}

func (a *App) handleReady(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range a.ready {
			if err := check(ctx); err != nil {
				log.WarnContext(ctx, "readiness check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// Handler is the application router.
func (a *App) Handler() http.Handler {
	return a.router
}

// Registry holds the application's Prometheus collectors.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
