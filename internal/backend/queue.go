package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by writes after Close.
var ErrQueueClosed = errors.New("write queue is closed")

// QueueConfig holds configuration for the write queue
type QueueConfig struct {
	// MaxAttempts is the number of tries per write before it is reported failed (default: 5)
	MaxAttempts int

	// BaseDelay is the wait after the first failure, doubled after each retry (default: 200ms)
	BaseDelay time.Duration

	// MaxDelay caps the wait between retries (default: 10s)
	MaxDelay time.Duration
}

// DefaultQueueConfig returns sensible defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

type pendingWrite struct {
	value []byte
	seq   uint64
}

// WriteQueue puts a Store behind an asynchronous, retrying writer.
//
// Writes are coalesced per key, so only the latest value of a key is ever
// sent. Reads see pending values before the store's. A write that still
// fails after MaxAttempts is dropped and reported by the next Flush as an
// error matching ErrPersistFailed.
type WriteQueue struct {
	store  Store
	config QueueConfig

	mu       sync.Mutex
	pending  map[string]pendingWrite
	order    []string
	seq      uint64
	failures []error
	closed   bool

	// drainMu serializes the worker and Flush
	drainMu sync.Mutex
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewWriteQueue starts the queue worker. Call Close to stop it.
func NewWriteQueue(store Store, config QueueConfig) *WriteQueue {
	defaults := DefaultQueueConfig()
	if config.MaxAttempts < 1 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = defaults.BaseDelay
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = max(defaults.MaxDelay, config.BaseDelay)
	}

	q := &WriteQueue{
		store:   store,
		config:  config,
		pending: map[string]pendingWrite{},
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Read returns the pending value of key, or the stored one.
func (q *WriteQueue) Read(ctx context.Context, key string) ([]byte, bool, error) {
	q.mu.Lock()
	if p, ok := q.pending[key]; ok {
		q.mu.Unlock()
		return append([]byte(nil), p.value...), true, nil
	}
	q.mu.Unlock()
	return q.store.Read(ctx, key)
}

// Write enqueues value for key, replacing any pending value of the key.
func (q *WriteQueue) Write(_ context.Context, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.seq++
	if _, ok := q.pending[key]; !ok {
		q.order = append(q.order, key)
	}
	q.pending[key] = pendingWrite{value: append([]byte(nil), value...), seq: q.seq}

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of keys waiting to be written.
func (q *WriteQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush writes everything pending and returns the failures recorded since
// the previous Flush.
func (q *WriteQueue) Flush(ctx context.Context) error {
	q.drainMu.Lock()
	q.drain(ctx, nil)
	q.drainMu.Unlock()

	q.mu.Lock()
	failures := q.failures
	q.failures = nil
	remaining := len(q.pending)
	q.mu.Unlock()

	if err := ctx.Err(); err != nil && remaining > 0 {
		failures = append(failures, fmt.Errorf("%w: %d writes still pending: %w", ErrPersistFailed, remaining, err))
	}
	return errors.Join(failures...)
}

// Close stops the worker and flushes what is left.
func (q *WriteQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	select {
	case <-q.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return q.Flush(ctx)
}

func (q *WriteQueue) run() {
	defer close(q.done)
	ctx := context.Background()
	for {
		select {
		case <-q.stop:
			return
		case <-q.wake:
			q.drainMu.Lock()
			q.drain(ctx, q.stop)
			q.drainMu.Unlock()
		}
	}
}

// drain writes pending keys in enqueue order until none are left, ctx is
// done or stop is closed. A nil stop never fires.
func (q *WriteQueue) drain(ctx context.Context, stop <-chan struct{}) {
	for {
		key, p, ok := q.next()
		if !ok {
			return
		}

		err := q.writeWithRetry(ctx, stop, key, p.value)
		if errors.Is(err, errStopping) || ctx.Err() != nil {
			// left pending for the next drain
			return
		}

		q.mu.Lock()
		if cur, ok := q.pending[key]; ok && cur.seq == p.seq {
			delete(q.pending, key)
			q.removeOrder(key)
		}
		if err != nil {
			q.failures = append(q.failures, err)
		}
		q.mu.Unlock()
	}
}

var errStopping = errors.New("write queue stopping")

func (q *WriteQueue) next() (string, pendingWrite, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, key := range q.order {
		if p, ok := q.pending[key]; ok {
			return key, p, true
		}
	}
	return "", pendingWrite{}, false
}

func (q *WriteQueue) removeOrder(key string) {
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *WriteQueue) writeWithRetry(ctx context.Context, stop <-chan struct{}, key string, value []byte) error {
	var err error
	for attempt := 1; attempt <= q.config.MaxAttempts; attempt++ {
		if err = q.store.Write(ctx, key, value); err == nil {
			return nil
		}

		slog.WarnContext(ctx, "Store write failed",
			"key", key,
			"attempt", attempt,
			"max_attempts", q.config.MaxAttempts,
			"error", err)

		if attempt == q.config.MaxAttempts {
			break
		}

		timer := time.NewTimer(q.backoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stop:
			timer.Stop()
			return errStopping
		}
	}

	slog.ErrorContext(ctx, "Store write failed permanently after max attempts",
		"key", key,
		"attempts", q.config.MaxAttempts,
		"error", err)
	return fmt.Errorf("%w: write %s after %d attempts: %w", ErrPersistFailed, key, q.config.MaxAttempts, err)
}

// backoff returns BaseDelay doubled for every attempt after the first, capped at MaxDelay.
func (q *WriteQueue) backoff(attempt int) time.Duration {
	d := q.config.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= q.config.MaxDelay {
			return q.config.MaxDelay
		}
	}
	return d
}
