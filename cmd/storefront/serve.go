package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/catalog"
	"github.com/tbourn/go-storefront-backend/internal/config"
	httpapi "github.com/tbourn/go-storefront-backend/internal/http"
	"github.com/tbourn/go-storefront-backend/internal/observability"
)

const shutdownGrace = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate, seed from CATALOG_PATH when set, and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer closeDB(db)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()
	if err := observability.InstrumentDB(db, cfg.OTEL); err != nil {
		return fmt.Errorf("instrument db: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		return err
	}
	if cfg.CatalogPath != "" {
		pk, err := seedCatalog(ctx, db, cfg.CatalogPath, cfg.Pity)
		if err != nil {
			return err
		}
		if len(pk) > 0 {
			cfg.CreditPackages = pk
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, httpapi.Deps{})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	return run(ctx, srv)
}

// run serves until ctx is done, then drains in-flight requests.
func run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// seedCatalog applies the catalog file and returns its credit packages.
func seedCatalog(ctx context.Context, db *gorm.DB, path string, pity config.PityDefaults) ([]config.CreditPackage, error) {
	seed, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := catalog.Apply(ctx, db, seed, pity)
	if err != nil {
		return nil, fmt.Errorf("apply catalog: %w", err)
	}
	log.Info().
		Str("path", path).
		Int("items", res.Items).
		Int("crates", res.Crates).
		Int("contents", res.Contents).
		Int("credit_packages", len(seed.CreditPackages)).
		Msg("catalog applied")
	return seed.CreditPackages, nil
}
