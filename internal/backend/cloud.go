package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"budgetbeacon/internal/core"
)

// CloudStubAdapter mirrors every save into a second slot of the same store
// and prefers that slot when reading. It models a remote backend without any
// network I/O.
type CloudStubAdapter struct {
	store Store
}

func NewCloudStubAdapter(store Store) *CloudStubAdapter {
	return &CloudStubAdapter{store: store}
}

func (a *CloudStubAdapter) Mode() Mode {
	return CloudMode
}

// ReadStateRaw returns the mirror when it holds a JSON object, otherwise the
// primary and legacy slots.
func (a *CloudStubAdapter) ReadStateRaw(ctx context.Context) ([]byte, bool, error) {
	mirror, ok, err := a.store.Read(ctx, CloudMirrorKey)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read cloud mirror, falling back to local slot", "error", err)
	} else if ok && isJSONObject(mirror) {
		return mirror, true, nil
	}
	return readWithLegacy(ctx, a.store)
}

// SaveState writes the primary slot and then the mirror.
func (a *CloudStubAdapter) SaveState(ctx context.Context, state core.State) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode state: %w", ErrPersistFailed, err)
	}
	if err := writeKey(ctx, a.store, StateKey, b); err != nil {
		return err
	}
	return writeKey(ctx, a.store, CloudMirrorKey, b)
}

func (a *CloudStubAdapter) OnboardingSeen(ctx context.Context) (bool, error) {
	return onboardingSeen(ctx, a.store)
}

func (a *CloudStubAdapter) SetOnboardingSeen(ctx context.Context) error {
	return writeKey(ctx, a.store, OnboardingKey, []byte("1"))
}

func (a *CloudStubAdapter) SyncNow(ctx context.Context, state core.State) SyncResult {
	if err := a.SaveState(ctx, state); err != nil {
		return SyncResult{OK: false, Mode: CloudMode, Message: "Cloud sync failed: could not write the mirror."}
	}
	return SyncResult{OK: true, Mode: CloudMode, Message: "Cloud mirror synced on this device."}
}

func (a *CloudStubAdapter) Flush(ctx context.Context) error {
	return flushStore(ctx, a.store)
}

func isJSONObject(b []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(b), &obj); err != nil {
		return false
	}
	return obj != nil
}

// NewAdapter returns the adapter for mode.
func NewAdapter(mode Mode, store Store) (Adapter, error) {
	switch mode {
	case LocalMode, "":
		return NewLocalAdapter(store), nil
	case CloudMode:
		return NewCloudStubAdapter(store), nil
	default:
		return nil, fmt.Errorf("unknown storage mode: %s", mode)
	}
}
