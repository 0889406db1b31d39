package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "KUNDKOLL"

// Env holds KUNDKOLL_* overrides. Empty values leave the file config untouched.
type Env struct {
	ConfigPath string `envconfig:"CONFIG"`
	AppName    string `envconfig:"APP_NAME"`
	DevMode    string `envconfig:"DEV_MODE"`

	DBPath    string `envconfig:"DB_PATH"`
	HTTPBind  string `envconfig:"HTTP_BIND"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	UserID    string `envconfig:"USER_ID"`
	UserName  string `envconfig:"USER_NAME"`
	RemoteURL string `envconfig:"REMOTE_URL"`
}

// LoadEnv reads KUNDKOLL_* environment variables.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return Env{}, fmt.Errorf("load env: %w", err)
	}
	return env, nil
}

// DevModeOverride reports the parsed KUNDKOLL_DEV_MODE value and whether it
// was set to a valid boolean.
func (e Env) DevModeOverride() (bool, bool) {
	raw := strings.TrimSpace(e.DevMode)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Apply overlays non-empty environment values onto cfg.
func (e Env) Apply(cfg Config) Config {
	if v := strings.TrimSpace(e.DBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := strings.TrimSpace(e.HTTPBind); v != "" {
		cfg.Server.HTTPBind = v
	}
	if v := strings.TrimSpace(e.LogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(e.UserID); v != "" {
		cfg.Identity.UserID = v
	}
	if v := strings.TrimSpace(e.UserName); v != "" {
		cfg.Identity.DisplayName = v
	}
	if v := strings.TrimSpace(e.RemoteURL); v != "" {
		cfg.Remote.BaseURL = v
	}
	return cfg
}
