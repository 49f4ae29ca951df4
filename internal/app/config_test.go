package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	require.Equal(t, ChangeFeedPostgres, cfg.ChangeFeed)
	require.Equal(t, 4*time.Second, cfg.ProbeTimeout)
	require.Equal(t, 30*time.Second, cfg.ProbeInterval)
	require.Equal(t, 256, cfg.EventQueueSize)
	require.True(t, cfg.SoundEnabled)
}

func TestLoadConfigMemoryDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("CHANGE_FEED", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	require.False(t, cfg.UsesRedis())
}

func TestValidateRejectsBadCombinations(t *testing.T) {
	base := func() Config {
		return Config{StoreDriver: "postgres", ChangeFeed: "postgres", EventQueueSize: 1, ProbeTimeout: time.Second, ProbeInterval: time.Second, SoundVolume: 0.5}
	}
	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.StoreDriver = "memory"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.ChangeFeed = "kafka"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.SoundVolume = 1.5
	require.Error(t, cfg.Validate())
}
