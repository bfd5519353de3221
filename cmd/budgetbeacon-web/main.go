package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbeacon/internal/cli"
	apphttp "budgetbeacon/internal/http"
	"budgetbeacon/internal/log"
	"budgetbeacon/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(os.Getenv("BUDGETBEACON_CONFIG"))
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(cfg, os.Stdout, log.ComponentApp)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Logger setup failed", log.FieldError, err)
		os.Exit(1)
	}

	session, err := cli.OpenSession(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open session", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	if msg := session.LoadResult.Message(); msg != "" {
		logger.Info(msg)
	}

	srv := apphttp.NewServer(":"+cfg.Port, session.Service, logger, apphttp.Options{
		Currency: cfg.Currency,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// keeps the served session current while nobody is writing
	recurring := worker.NewRecurringWorker(session.Service, cfg.RecurringInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := session.Close(ctx); err != nil {
			logger.Error("Session close failed", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budgetbeacon server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			log.FieldMode, session.Service.Mode().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return recurring.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = srv.Shutdown(context.Background())
		_ = session.Close(context.Background())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
