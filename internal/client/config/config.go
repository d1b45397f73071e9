// Package config loads runtime configuration for the SecureVault CLI.
//
// Sources, later ones win:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. SECUREVAULT_* environment variables.
//  4. Command-line flags.
//
// Supported flags
//
//	-a string   address:port of the vault gRPC endpoint
//	-i int      session status poll interval (seconds)
//	-l int      idle auto-lock window (seconds)
//	-w int      clipboard wipe delay (seconds)
//	-f string   local state database file
//	-k string   key derivation profile (moderate|interactive)
//
// # JSON schema
//
// Durations use timex.Duration, so either "30s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "status_poll_interval": "30s",
//	  "idle_lock_window": "5m",
//	  "clipboard_wipe_delay": "30s",
//	  "state_db_path": "securevault.db",
//	  "kdf_profile": "moderate"
//	}
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/cryptox"
)

const (
	ProfileModerate    = "moderate"
	ProfileInteractive = "interactive"
)

// Config holds runtime settings for the CLI.
type Config struct {
	ServerEndpointAddr string
	StatusPollInterval time.Duration
	IdleLockWindow     time.Duration
	ClipboardWipeDelay time.Duration
	RequestTimeout     time.Duration
	StateDBPath        string
	KDFProfile         string
	LogFormat          string
	LogLevel           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.StatusPollInterval = 30 * time.Second
	c.IdleLockWindow = 5 * time.Minute
	c.ClipboardWipeDelay = 30 * time.Second
	c.RequestTimeout = 12 * time.Second
	c.StateDBPath = "securevault.db"
	c.KDFProfile = ProfileModerate
	c.LogFormat = "text"
	c.LogLevel = "warn"
}

// KDFParams returns the Argon2id cost profile named by KDFProfile.
func (c *Config) KDFParams() (cryptox.Params, error) {
	switch c.KDFProfile {
	case "", ProfileModerate:
		return cryptox.ModerateParams, nil
	case ProfileInteractive:
		return cryptox.InteractiveParams, nil
	}
	return cryptox.Params{}, fmt.Errorf("unknown kdf profile %q", c.KDFProfile)
}

// LoadConfig builds a Config from defaults, JSON, environment and flags.
// Malformed input panics.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if err := parseEnv(cfg); err != nil {
		panic(err)
	}
	parseFlags(cfg)
	return cfg
}
