package config

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/securevault/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	env := flagx.NewEnvFrom(map[string]string{
		"SECUREVAULT_DATABASE_DSN":     "postgres://db",
		"SECUREVAULT_SESSION_TTL":      "1h",
		"SECUREVAULT_WEBAUTHN_ORIGINS": "https://a.example, https://b.example",
		"SECUREVAULT_LOGIN_RATE_LIMIT": "0.5",
		"SECUREVAULT_LOGIN_RATE_BURST": "2",
		"SECUREVAULT_LOG_LEVEL":        "",
	})

	require.NoError(t, applyEnv(cfg, env))
	assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
	assert.Equal(t, time.Hour, cfg.SessionValidityDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WebAuthnOrigins)
	assert.Equal(t, 0.5, cfg.LoginRateLimit)
	assert.Equal(t, 2, cfg.LoginRateBurst)
	assert.Equal(t, "info", cfg.LogLevel, "empty values are ignored")
}

func TestApplyEnv_BadValue(t *testing.T) {
	cfg := &Config{}
	env := flagx.NewEnvFrom(map[string]string{"SECUREVAULT_TRUST_TOKEN_TTL": "forever"})

	err := applyEnv(cfg, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECUREVAULT_TRUST_TOKEN_TTL")
}
