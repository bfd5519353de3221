package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbeacon/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		DataBackend:      "redis",
		StorageMode:      "cloud",
		RedisURL:         "redis://localhost:6379/0",
		RedisKeyPrefix:   "bb:",
		WriteMaxAttempts: 7,
		WriteBaseDelay:   100 * time.Millisecond,
		DataSeedDir:      "seed",
	}

	cfg, err := FromAppConfig(appCfg)
	require.NoError(t, err)
	assert.Equal(t, RedisBackend, cfg.Type)
	assert.Equal(t, CloudMode, cfg.Mode)
	assert.Equal(t, 7, cfg.Queue.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Queue.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Queue.MaxDelay)
	assert.Equal(t, "seed", cfg.DataDirectory)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "memory", StorageMode: "remote"})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"redis", Config{Type: RedisBackend, RedisURL: "redis://x", Queue: DefaultQueueConfig()}, false},
		{"redis without url", Config{Type: RedisBackend, Queue: DefaultQueueConfig()}, true},
		{"redis without attempts", Config{Type: RedisBackend, RedisURL: "redis://x"}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"unknown mode", Config{Type: MemoryBackend, Mode: "remote"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite", "redis"}, GetBackendTypeStrings())
}

func TestFactory_Memory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateKey+".json"), []byte(`{"budget":10}`), 0644))

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	assert.Nil(t, res.Cleanup)
	assert.Equal(t, LocalMode, res.Adapter.Mode())

	raw, ok, err := res.Adapter.ReadStateRaw(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"budget":10}`, string(raw))
}

func TestFactory_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, Mode: CloudMode, SQLiteDBPath: path})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)
	defer res.Cleanup()

	assert.Equal(t, CloudMode, res.Adapter.Mode())
	require.NoError(t, res.Adapter.SetOnboardingSeen(ctx))
	seen, err := res.Adapter.OnboardingSeen(ctx)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestFactory_RedisUsesWriteQueue(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:           RedisBackend,
		RedisURL:       "redis://" + mr.Addr(),
		RedisKeyPrefix: "bb:",
		Queue:          QueueConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	require.NoError(t, err)

	_, queued := res.Store.(*WriteQueue)
	assert.True(t, queued)

	require.NoError(t, res.Adapter.SaveState(ctx, sampleState()))
	require.NoError(t, res.Cleanup())

	got, err := mr.Get("bb:" + StateKey)
	require.NoError(t, err)
	assert.Contains(t, got, `"budget":1500`)
}

func TestFactory_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:     RedisBackend,
		RedisURL: "redis://127.0.0.1:1",
		Queue:    DefaultQueueConfig(),
	})
	assert.Error(t, err)
}
