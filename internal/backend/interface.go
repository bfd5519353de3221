package backend

import (
	"context"
	"errors"

	"budgetbeacon/internal/core"
)

// Storage keys.
const (
	StateKey       = "budgetbeacon_web_v1"
	OnboardingKey  = "budgetbeacon_onboarding_seen_v1"
	CloudMirrorKey = "budgetbeacon_cloud_mirror_v1"
)

// LegacyStateKeys are probed in order when StateKey holds nothing. They are
// never written.
var LegacyStateKeys = []string{"pybudget_web_v1"}

// ErrPersistFailed marks a State write that did not reach the store.
var ErrPersistFailed = errors.New("persist failed")

// Store is a key-value byte store.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
}

// Flusher is implemented by stores that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Mode names an adapter flavor.
type Mode string

const (
	LocalMode Mode = "local"
	CloudMode Mode = "cloud"
)

func (m Mode) String() string {
	return string(m)
}

func (m Mode) IsValid() bool {
	return m == LocalMode || m == CloudMode
}

// SyncResult reports the outcome of a manual sync.
type SyncResult struct {
	OK      bool   `json:"ok"`
	Mode    Mode   `json:"mode"`
	Message string `json:"message"`
}

// Adapter is what the session needs from persistence.
type Adapter interface {
	// ReadStateRaw returns the raw persisted document, or false when none exists.
	ReadStateRaw(ctx context.Context) ([]byte, bool, error)
	SaveState(ctx context.Context, state core.State) error
	OnboardingSeen(ctx context.Context) (bool, error)
	SetOnboardingSeen(ctx context.Context) error
	SyncNow(ctx context.Context, state core.State) SyncResult
	Mode() Mode
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error
