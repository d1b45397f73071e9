package config

import "github.com/dmitrijs2005/securevault/internal/flagx"

// parseEnv overlays SECUREVAULT_* variables, e.g. SECUREVAULT_DATABASE_DSN.
func parseEnv(config *Config) error {
	return applyEnv(config, flagx.NewEnv())
}

func applyEnv(config *Config, env *flagx.Env) error {
	env.String("GRPC_ADDR", &config.EndpointAddrGRPC)
	env.String("DATABASE_DSN", &config.DatabaseDSN)
	env.String("SECRET_KEY", &config.SecretKey)
	env.Duration("SESSION_TTL", &config.SessionValidityDuration)
	env.Duration("TRUST_TOKEN_TTL", &config.TrustTokenValidityDuration)
	env.String("REDIS_ADDR", &config.RedisAddr)
	env.String("WEBAUTHN_RP_ID", &config.WebAuthnRPID)
	env.String("WEBAUTHN_RP_NAME", &config.WebAuthnRPName)
	env.Strings("WEBAUTHN_ORIGINS", &config.WebAuthnOrigins)
	env.String("S3_ROOT_USER", &config.S3RootUser)
	env.String("S3_ROOT_PASSWORD", &config.S3RootPassword)
	env.String("S3_BUCKET", &config.S3Bucket)
	env.String("S3_REGION", &config.S3Region)
	env.String("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	env.String("BREACH_BASE_URL", &config.BreachBaseURL)
	env.Float("LOGIN_RATE_LIMIT", &config.LoginRateLimit)
	env.Int("LOGIN_RATE_BURST", &config.LoginRateBurst)
	env.String("LOG_FORMAT", &config.LogFormat)
	env.String("LOG_LEVEL", &config.LogLevel)
	return env.Err()
}
