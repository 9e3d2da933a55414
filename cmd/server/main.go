package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"scorevc/internal/platform/config"
	"scorevc/internal/platform/httpserver"
	"scorevc/internal/platform/logger"
	"scorevc/internal/server"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scorevc: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	servers := []*http.Server{httpserver.New(cfg.Addr, a.Handler(), httpserver.WithUpstreamDeadline(cfg.Score.Timeout))}
	if cfg.MetricsAddr != "" {
		servers = append(servers, httpserver.New(cfg.MetricsAddr, promhttp.HandlerFor(a.Registry(), promhttp.HandlerOpts{})))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	log.Info("starting scorevc",
		"addr", cfg.Addr,
		"issuer_id", cfg.Issuer.ID,
		"linkage_backend", cfg.Linkage.Backend,
	)
	return g.Wait()
}
