package cli

import (
	"context"
	"errors"
	"fmt"

	"budgetbeacon/internal/amqp"
	"budgetbeacon/internal/backend"
	"budgetbeacon/internal/config"
	"budgetbeacon/internal/log"
	"budgetbeacon/internal/services"
)

// Session is a loaded BudgetService together with the resources behind it.
type Session struct {
	Service    *services.BudgetService
	Config     *config.Config
	Logger     *log.Logger
	LoadResult services.LoadResult

	publisher *amqp.Client
	cleanup   backend.CleanupFunc
}

// OpenSession creates the configured store and adapter, connects the state
// change publisher when AMQP is configured, and loads the State.
//
// An unreachable broker only disables notifications. extra options are
// applied after the ones derived from cfg.
func OpenSession(ctx context.Context, cfg *config.Config, logger *log.Logger, extra ...services.Option) (*Session, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	result, err := backend.NewFactory(logger.WithComponent(log.ComponentStorage).Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	s := &Session{
		Config:  cfg,
		Logger:  logger,
		cleanup: result.Cleanup,
	}

	opts := []services.Option{services.WithLocation(loc)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "AMQP unavailable, state change notifications disabled", log.FieldError, err)
		} else {
			s.publisher = client
			opts = append(opts, services.WithPublisher(client))
		}
	}
	opts = append(opts, extra...)

	s.Service = services.NewBudgetService(result.Adapter, opts...)
	s.LoadResult, err = s.Service.Load(ctx)
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("load state: %w", err)
	}

	logger.InfoContext(ctx, "Session ready",
		log.FieldBackend, backendCfg.Type.String(),
		log.FieldMode, s.Service.Mode().String(),
		log.FieldAdded, s.LoadResult.Added)
	return s, nil
}

// Close flushes buffered writes, then releases the publisher and the store.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.Service != nil {
		if err := s.Service.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if s.cleanup != nil {
		if err := s.cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
