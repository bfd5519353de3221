package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbeacon/internal/amqp"
	"budgetbeacon/internal/cli"
	"budgetbeacon/internal/log"
	"budgetbeacon/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(os.Getenv("BUDGETBEACON_CONFIG"))
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(cfg, os.Stdout, log.ComponentWorker)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Logger setup failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting recurring-worker",
		log.FieldBackend, cfg.DataBackend,
		log.FieldMode, cfg.StorageMode,
		"interval", cfg.RecurringInterval)

	session, err := cli.OpenSession(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open session", log.FieldError, err)
		os.Exit(1)
	}
	if msg := session.LoadResult.Message(); msg != "" {
		logger.Info(msg)
	}

	// Consumer connection is separate from the session's publisher
	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, running on the ticker only", log.FieldError, err)
			consumer = nil
		}
	} else {
		logger.Info("AMQP disabled - state changes made elsewhere are picked up on the next tick")
	}

	recurring := worker.NewRecurringWorker(session.Service, cfg.RecurringInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Warn("AMQP close failed", log.FieldError, err)
			}
		}
		if err := session.Close(ctx); err != nil {
			logger.Error("Session close failed", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return recurring.Run(gctx)
	})
	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeStateChanged(gctx, func(msg *amqp.StateChangedMessage) error {
				return recurring.HandleStateChanged(gctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Recurring-worker stopped with error", log.FieldError, err)
		_ = session.Close(context.Background())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
