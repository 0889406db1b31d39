package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/kundkoll/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the kundkoll runtime configuration loaded from config.toml.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Identity  IdentityConfig  `toml:"identity"`
	Remote    RemoteConfig    `toml:"remote"`
	Logging   LoggingConfig   `toml:"logging"`
	Timeline  TimelineConfig  `toml:"timeline"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds serve-mode endpoints.
type ServerConfig struct {
	HTTPBind       string   `toml:"http_bind"`
	APIEndpoint    string   `toml:"api_endpoint"`
	MCPEndpoint    string   `toml:"mcp_endpoint"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DashboardConfig struct {
	DebounceMS   int    `toml:"debounce_ms"`
	DefaultRange string `toml:"default_range"`
}

// IdentityConfig names the local user recorded on activities and preferences.
type IdentityConfig struct {
	UserID      string `toml:"user_id"`
	DisplayName string `toml:"display_name"`
}

type RemoteConfig struct {
	BaseURL   string `toml:"base_url"`
	TimeoutMS int    `toml:"timeout_ms"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the dev-mode log file sink.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type TimelineConfig struct {
	CollapseByDefault bool `toml:"collapse_by_default"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			HTTPBind:       "127.0.0.1:8080",
			APIEndpoint:    "/api/v1",
			MCPEndpoint:    "/mcp",
			AllowedOrigins: []string{"*"},
		},
		Dashboard: DashboardConfig{
			DebounceMS:   1000,
			DefaultRange: string(domain.DateRangeMonth),
		},
		Identity: IdentityConfig{
			UserID: "local",
		},
		Remote: RemoteConfig{
			TimeoutMS: 10000,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kundkoll/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if c.Dashboard.DebounceMS < 0 {
		return fmt.Errorf("dashboard.debounce_ms must be >= 0")
	}
	if strings.TrimSpace(c.Dashboard.DefaultRange) != "" {
		if _, err := domain.ParseDateRange(c.Dashboard.DefaultRange); err != nil {
			return fmt.Errorf("invalid dashboard.default_range: %w", err)
		}
	}
	if strings.TrimSpace(c.Identity.UserID) == "" {
		return errors.New("identity.user_id is required")
	}
	if c.Remote.TimeoutMS < 0 {
		return fmt.Errorf("remote.timeout_ms must be >= 0")
	}
	if raw := strings.TrimSpace(c.Remote.BaseURL); raw != "" {
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
	}
	if _, err := c.Logging.ParseLevel(); err != nil {
		return err
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when the dev file sink is enabled")
	}
	return nil
}

// ParseLevel resolves the configured log level, defaulting to info.
func (l LoggingConfig) ParseLevel() (log.Level, error) {
	raw := strings.ToLower(strings.TrimSpace(l.Level))
	if raw == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid logging.level: %q", l.Level)
	}
	return level, nil
}

// DebounceQuiet returns the dashboard layout quiet period.
func (c Config) DebounceQuiet() time.Duration {
	return time.Duration(c.Dashboard.DebounceMS) * time.Millisecond
}

// DefaultDateRange returns the configured range, falling back to month.
func (c Config) DefaultDateRange() domain.DateRange {
	r, err := domain.ParseDateRange(c.Dashboard.DefaultRange)
	if err != nil {
		return domain.DateRangeMonth
	}
	return r
}

// RemoteTimeout returns the HTTP client timeout for remote mode.
func (c Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutMS) * time.Millisecond
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// UpsertIdentity writes the identity section into the config file, keeping
// every other section as currently loaded.
func UpsertIdentity(path, userID, displayName string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("config path is required")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("identity.user_id is required")
	}
	doc := map[string]any{}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(content) > 0 {
			if err := toml.Unmarshal(content, &doc); err != nil {
				return fmt.Errorf("decode toml: %w", err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("read config: %w", err)
	}
	identity := map[string]any{"user_id": userID}
	if name := strings.TrimSpace(displayName); name != "" {
		identity["display_name"] = name
	}
	doc["identity"] = identity

	encoded, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
