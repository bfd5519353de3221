package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"budgetbeacon/internal/amqp"
	"budgetbeacon/internal/log"
	"budgetbeacon/internal/services"
)

// ErrAlreadyRunning is returned by Start on a running worker.
var ErrAlreadyRunning = errors.New("recurring worker already running")

// Session is the part of the budget session the worker drives.
type Session interface {
	Load(ctx context.Context) (services.LoadResult, error)
	MaterializeDue(ctx context.Context) (int, error)
}

// RecurringWorker materializes due recurring entries on a fixed interval and
// reloads the State when another process announces a change.
type RecurringWorker struct {
	session  Session
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRecurringWorker creates a worker. A nil logger uses the slog default.
func NewRecurringWorker(session Session, interval time.Duration, logger *log.Logger) *RecurringWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &RecurringWorker{
		session:  session,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// RunOnce materializes every due occurrence and returns how many entries
// were added.
func (w *RecurringWorker) RunOnce(ctx context.Context) (int, error) {
	added, err := w.session.MaterializeDue(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Recurring materialization failed", log.FieldError, err)
		return added, err
	}
	if added > 0 {
		w.logger.InfoContext(ctx, "Recurring entries materialized", log.FieldAdded, added)
	} else {
		w.logger.DebugContext(ctx, "No recurring entries due")
	}
	return added, nil
}

// Run materializes once, then on every tick until ctx is done.
func (w *RecurringWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Recurring worker started", "interval", w.interval)
	_, _ = w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Recurring worker stopped")
			return nil
		case now := <-ticker.C:
			if _, err := w.RunOnce(ctx); err == nil {
				w.logger.DebugContext(ctx, "Next recurring check scheduled",
					"next_check", now.Add(w.interval).Format("15:04:05"))
			}
		}
	}
}

// Start runs the worker in the background until Stop or until ctx is done.
func (w *RecurringWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		_ = w.Run(ctx)
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}(w.done)
	return nil
}

// Stop cancels a started worker and waits for it to return.
func (w *RecurringWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsRunning reports whether a started worker is still looping.
func (w *RecurringWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// HandleStateChanged reloads the State after a change made elsewhere, which
// also materializes anything the change made due. Materialization events are
// skipped so the worker does not react to its own output.
func (w *RecurringWorker) HandleStateChanged(ctx context.Context, msg *amqp.StateChangedMessage) error {
	if msg == nil || msg.Reason == amqp.ReasonMaterialize {
		return nil
	}
	w.logger.InfoContext(ctx, "State changed elsewhere, reloading",
		log.FieldReason, msg.Reason,
		log.FieldRevision, msg.Revision)

	res, err := w.session.Load(ctx)
	if err != nil {
		return err
	}
	if res.Added > 0 {
		w.logger.InfoContext(ctx, "Recurring entries materialized after reload", log.FieldAdded, res.Added)
	}
	return nil
}
