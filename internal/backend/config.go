package backend

import (
	"fmt"
	"time"

	"budgetbeacon/internal/config"
)

// Config holds configuration for store creation
type Config struct {
	// Store type
	Type BackendType

	// Adapter flavor
	Mode Mode

	// SQLite specific
	SQLiteDBPath string

	// Redis specific
	RedisURL       string
	RedisKeyPrefix string

	// Write queue, used for networked stores
	Queue QueueConfig

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RedisBackend:
		return true
	default:
		return false
	}
}

// IsNetworked reports whether writes cross the network and need the write queue.
func (bt BackendType) IsNetworked() bool {
	return bt == RedisBackend
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	mode := Mode(appConfig.StorageMode)
	if mode == "" {
		mode = LocalMode
	}
	if !mode.IsValid() {
		return Config{}, fmt.Errorf("invalid storage mode in config: %s", appConfig.StorageMode)
	}

	queue := DefaultQueueConfig()
	if appConfig.WriteMaxAttempts > 0 {
		queue.MaxAttempts = appConfig.WriteMaxAttempts
	}
	if appConfig.WriteBaseDelay > 0 {
		queue.BaseDelay = appConfig.WriteBaseDelay
		queue.MaxDelay = max(queue.MaxDelay, 50*appConfig.WriteBaseDelay)
	}

	return Config{
		Type: backendType,
		Mode: mode,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		RedisURL:       appConfig.RedisURL,
		RedisKeyPrefix: appConfig.RedisKeyPrefix,

		Queue: queue,

		DataDirectory: appConfig.DataSeedDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Mode != "" && !c.Mode.IsValid() {
		return fmt.Errorf("invalid storage mode: %s", c.Mode)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case RedisBackend:
		if c.RedisURL == "" {
			return fmt.Errorf("Redis URL is required for redis backend")
		}
		if c.Queue.MaxAttempts < 1 {
			return fmt.Errorf("write queue needs at least one attempt")
		}
	case MemoryBackend:
		// DataDirectory is optional; an empty or missing directory starts empty
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, RedisBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

// closeTimeout bounds the final flush of the write queue on cleanup.
const closeTimeout = 10 * time.Second
