package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"budgetbeacon/internal/core"
)

// LocalAdapter keeps the State in one store slot.
type LocalAdapter struct {
	store Store
}

func NewLocalAdapter(store Store) *LocalAdapter {
	return &LocalAdapter{store: store}
}

func (a *LocalAdapter) Mode() Mode {
	return LocalMode
}

// ReadStateRaw reads StateKey, then each legacy key in order.
func (a *LocalAdapter) ReadStateRaw(ctx context.Context) ([]byte, bool, error) {
	return readWithLegacy(ctx, a.store)
}

func (a *LocalAdapter) SaveState(ctx context.Context, state core.State) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode state: %w", ErrPersistFailed, err)
	}
	return writeKey(ctx, a.store, StateKey, b)
}

func (a *LocalAdapter) OnboardingSeen(ctx context.Context) (bool, error) {
	return onboardingSeen(ctx, a.store)
}

func (a *LocalAdapter) SetOnboardingSeen(ctx context.Context) error {
	return writeKey(ctx, a.store, OnboardingKey, []byte("1"))
}

// SyncNow saves the State. Local mode has nothing remote to reach.
func (a *LocalAdapter) SyncNow(ctx context.Context, state core.State) SyncResult {
	if err := a.SaveState(ctx, state); err != nil {
		return SyncResult{OK: false, Mode: LocalMode, Message: "Could not save data on this device."}
	}
	return SyncResult{OK: true, Mode: LocalMode, Message: "Local mode: data saved on this device."}
}

// Flush drains buffered writes when the store buffers them.
func (a *LocalAdapter) Flush(ctx context.Context) error {
	return flushStore(ctx, a.store)
}

func readWithLegacy(ctx context.Context, store Store) ([]byte, bool, error) {
	for _, key := range append([]string{StateKey}, LegacyStateKeys...) {
		b, ok, err := store.Read(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("read %s: %w", key, err)
		}
		if ok && len(b) > 0 {
			return b, true, nil
		}
	}
	return nil, false, nil
}

func onboardingSeen(ctx context.Context, store Store) (bool, error) {
	b, ok, err := store.Read(ctx, OnboardingKey)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", OnboardingKey, err)
	}
	return ok && string(b) == "1", nil
}

func writeKey(ctx context.Context, store Store, key string, value []byte) error {
	if err := store.Write(ctx, key, value); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistFailed, key, err)
	}
	return nil
}

func flushStore(ctx context.Context, store Store) error {
	if f, ok := store.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
