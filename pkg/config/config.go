// Package config loads and defaults the host/client YAML configuration:
// lane budgets, heartbeat cadence, listener addresses, and the optional
// ngrok/certmagic listener toggles (SPEC_FULL §9.1's ambient stack). No
// teacher file does config loading this way (amantus-ai-vibetunnel reads
// flags directly into its session manager); gopkg.in/yaml.v3 is the
// teacher's own direct go.mod dependency, unused in the retrieved files,
// wired here for the one ambient concern it obviously belongs to.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/beachshare/beach/pkg/wire"
)

// NgrokConfig toggles the optional ngrok listener mode.
type NgrokConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"auth_token"`
	Domain    string `yaml:"domain"`
}

// TLSConfig toggles the optional certmagic-managed TLS listener.
type TLSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Domains []string `yaml:"domains"`
	Email   string   `yaml:"email"`
}

// HostConfig is the beachd daemon's configuration.
type HostConfig struct {
	ListenAddr string      `yaml:"listen_addr"`
	Ngrok      NgrokConfig `yaml:"ngrok"`
	TLS        TLSConfig   `yaml:"tls"`
}

// SyncTuning holds the handshake/delta-loop knobs exposed in Hello's
// SyncConfig (spec §6.1), plus the host-local scrollback capacity.
type SyncTuning struct {
	DeltaBudget          uint32 `yaml:"delta_budget"`
	HeartbeatMillis      uint64 `yaml:"heartbeat_ms"`
	InitialSnapshotLines uint32 `yaml:"initial_snapshot_lines"`
	ScrollbackRows       int    `yaml:"scrollback_rows"`
}

// ToWireConfig builds the wire.SyncConfig negotiated during Hello.
func (s SyncTuning) ToWireConfig() wire.SyncConfig {
	cfg := wire.DefaultSyncConfig()
	if s.DeltaBudget > 0 {
		cfg.DeltaBudget = s.DeltaBudget
	}
	if s.HeartbeatMillis > 0 {
		cfg.HeartbeatMillis = s.HeartbeatMillis
	}
	if s.InitialSnapshotLines > 0 {
		cfg.InitialSnapshotLines = s.InitialSnapshotLines
	}
	return cfg
}

// Config is the top-level beachd configuration document.
type Config struct {
	Host HostConfig `yaml:"host"`
	Sync SyncTuning `yaml:"sync"`
}

// Default returns a Config with sensible out-of-the-box values.
func Default() Config {
	return Config{
		Host: HostConfig{ListenAddr: ":4040"},
		Sync: SyncTuning{
			DeltaBudget:          wire.MaxUpdatesPerFrame,
			HeartbeatMillis:      3000,
			InitialSnapshotLines: 1000,
			ScrollbackRows:       10000,
		},
	}
}

// Load reads a YAML config file at path, starting from Default() so a
// partial file only overrides what it names. A missing file is not an
// error: it returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
