package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beachshare/beach/pkg/wire"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beachd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host:\n  listen_addr: \":9090\"\nsync:\n  heartbeat_ms: 1500\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Host.ListenAddr)
	require.EqualValues(t, 1500, cfg.Sync.HeartbeatMillis)
	// Untouched fields keep their defaults.
	require.Equal(t, Default().Sync.ScrollbackRows, cfg.Sync.ScrollbackRows)
}

func TestSyncTuningToWireConfigAppliesOverrides(t *testing.T) {
	tuning := SyncTuning{DeltaBudget: 50, HeartbeatMillis: 2000, InitialSnapshotLines: 500}
	wireCfg := tuning.ToWireConfig()
	require.EqualValues(t, 50, wireCfg.DeltaBudget)
	require.EqualValues(t, 2000, wireCfg.HeartbeatMillis)
	require.EqualValues(t, 500, wireCfg.InitialSnapshotLines)
}

func TestSyncTuningToWireConfigZeroValuesKeepDefaults(t *testing.T) {
	got := SyncTuning{}.ToWireConfig()
	require.Equal(t, wire.DefaultSyncConfig(), got)
}

func TestWatcherFiresOnChangeOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beachd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host:\n  listen_addr: \":4040\"\n"), 0o644))

	changed := make(chan Config, 1)
	w, err := NewWatcher(path, func(c Config) { changed <- c })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("host:\n  listen_addr: \":5050\"\n"), 0o644))

	select {
	case cfg := <-changed:
		require.Equal(t, ":5050", cfg.Host.ListenAddr)
	case <-time.After(2 * time.Second):
		require.Fail(t, "expected OnChange to fire after file write")
	}
}
