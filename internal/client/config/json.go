package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/securevault/internal/flagx"
	"github.com/dmitrijs2005/securevault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Zero values
// leave the corresponding Config field untouched.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	StatusPollInterval timex.Duration `json:"status_poll_interval"`
	IdleLockWindow     timex.Duration `json:"idle_lock_window"`
	ClipboardWipeDelay timex.Duration `json:"clipboard_wipe_delay"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
	StateDBPath        string         `json:"state_db_path"`
	KDFProfile         string         `json:"kdf_profile"`
	LogFormat          string         `json:"log_format"`
	LogLevel           string         `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c/-config, if any. It
// panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setDuration(&cfg.StatusPollInterval, jc.StatusPollInterval)
	setDuration(&cfg.IdleLockWindow, jc.IdleLockWindow)
	setDuration(&cfg.ClipboardWipeDelay, jc.ClipboardWipeDelay)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setString(&cfg.StateDBPath, jc.StateDBPath)
	setString(&cfg.KDFProfile, jc.KDFProfile)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.LogLevel, jc.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	*dst = v.Or(*dst)
}
