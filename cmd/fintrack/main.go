package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting fintrack", "port", cfg.Port, "backend", cfg.DataBackend)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL, nil)
	if err != nil {
		logger.Error("Failed to initialize token issuer", log.FieldError, err.Error())
		_ = result.Cleanup()
		os.Exit(1)
	}

	svcOpts := []services.Option{services.WithLogger(logger)}
	srv, err := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Users:        services.NewUserService(result.Store, tokens, svcOpts...),
		Accounts:     services.NewAccountService(result.Store, svcOpts...),
		Categories:   services.NewCategoryService(result.Store, svcOpts...),
		Transactions: services.NewTransactionService(result.Store, result.Publisher, svcOpts...),
		Storage:      result.Store,
	}, apphttp.Options{
		SecureCookie:   cfg.SecureCookie,
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err.Error())
		_ = result.Cleanup()
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return cli.GracefulShutdown(logger, 30*time.Second,
			srv.Shutdown,
			func(context.Context) error { return result.Cleanup() },
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
