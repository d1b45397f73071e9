package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/securevault/internal/flagx"
	"github.com/dmitrijs2005/securevault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Interval fields use timex.Duration, so both "24h" and integer nanoseconds
// are accepted. After unmarshalling, set fields are copied into Config.
type JsonConfig struct {
	EndpointAddrGRPC           string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                string         `json:"database_dsn"`
	SecretKey                  string         `json:"secret_key"`
	SessionValidityDuration    timex.Duration `json:"session_validity_duration"`
	TrustTokenValidityDuration timex.Duration `json:"trust_token_validity_duration"`
	RedisAddr                  string         `json:"redis_addr"`
	WebAuthnRPID               string         `json:"webauthn_rp_id"`
	WebAuthnRPName             string         `json:"webauthn_rp_name"`
	WebAuthnOrigins            []string       `json:"webauthn_origins"`
	S3RootUser                 string         `json:"s3_root_user"`
	S3RootPassword             string         `json:"s3_root_password"`
	S3Bucket                   string         `json:"s3_bucket"`
	S3Region                   string         `json:"s3_region"`
	S3BaseEndpoint             string         `json:"s3_base_endpoint"`
	BreachBaseURL              string         `json:"breach_base_url"`
	LoginRateLimit             float64        `json:"login_rate_limit"`
	LoginRateBurst             int            `json:"login_rate_burst"`
	LogFormat                  string         `json:"log_format"`
	LogLevel                   string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config. Without the flag nothing is loaded. A file that cannot be read or
// decoded panics. Only fields present in the file override the defaults.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.SessionValidityDuration, c.SessionValidityDuration.Duration)
	setDuration(&config.TrustTokenValidityDuration, c.TrustTokenValidityDuration.Duration)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.WebAuthnRPID, c.WebAuthnRPID)
	setString(&config.WebAuthnRPName, c.WebAuthnRPName)
	if len(c.WebAuthnOrigins) > 0 {
		config.WebAuthnOrigins = c.WebAuthnOrigins
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.BreachBaseURL, c.BreachBaseURL)
	if c.LoginRateLimit > 0 {
		config.LoginRateLimit = c.LoginRateLimit
	}
	if c.LoginRateBurst > 0 {
		config.LoginRateBurst = c.LoginRateBurst
	}
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
