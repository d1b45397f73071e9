package config

import "github.com/dmitrijs2005/securevault/internal/flagx"

// parseEnv overlays SECUREVAULT_* variables, e.g. SECUREVAULT_SERVER_ADDR.
func parseEnv(cfg *Config) error {
	return applyEnv(cfg, flagx.NewEnv())
}

func applyEnv(cfg *Config, env *flagx.Env) error {
	env.String("SERVER_ADDR", &cfg.ServerEndpointAddr)
	env.Duration("STATUS_POLL_INTERVAL", &cfg.StatusPollInterval)
	env.Duration("IDLE_LOCK_WINDOW", &cfg.IdleLockWindow)
	env.Duration("CLIPBOARD_WIPE_DELAY", &cfg.ClipboardWipeDelay)
	env.Duration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	env.String("STATE_DB", &cfg.StateDBPath)
	env.String("KDF_PROFILE", &cfg.KDFProfile)
	env.String("CLI_LOG_FORMAT", &cfg.LogFormat)
	env.String("CLI_LOG_LEVEL", &cfg.LogLevel)
	return env.Err()
}
