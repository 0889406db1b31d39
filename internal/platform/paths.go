package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	defaultAppName = "kundkoll"
	configFileName = "config.toml"
	devSuffix      = "-dev"
)

var (
	ErrEmptyBaseDir = errors.New("empty base dir")
	ErrEmptyAppName = errors.New("empty app name")
)

// Paths lists where kundkoll keeps its config file and database.
type Paths struct {
	ConfigDir  string
	ConfigPath string
	DataDir    string
	DBPath     string
}

// WithDBOverride returns p with DBPath replaced when override is non-empty.
func (p Paths) WithDBOverride(override string) Paths {
	if override = strings.TrimSpace(override); override != "" {
		p.DBPath = override
	}
	return p
}

// Options selects the app directory name; DevMode appends -dev.
type Options struct {
	AppName string
	DevMode bool
}

func (o Options) dirName() string {
	name := strings.TrimSpace(o.AppName)
	if name == "" {
		name = defaultAppName
	}
	if o.DevMode {
		name += devSuffix
	}
	return name
}

// baseEnv names the variables that relocate the config and data roots per GOOS.
// macOS and unlisted platforms keep the os.UserConfigDir location for both.
var baseEnv = map[string]struct{ config, data string }{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPaths resolves the production kundkoll paths for the running OS.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths for the running OS and process env.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	configRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
	}
	dataRoot, err := defaultDataRoot(runtime.GOOS, configRoot)
	if err != nil {
		return Paths{}, err
	}

	env := map[string]string{}
	if keys, ok := baseEnv[runtime.GOOS]; ok {
		env[keys.config] = os.Getenv(keys.config)
		env[keys.data] = os.Getenv(keys.data)
	}
	return PathsFor(runtime.GOOS, env, configRoot, dataRoot, opts.dirName())
}

// defaultDataRoot picks the data root used when no env override is set.
func defaultDataRoot(goos, configRoot string) (string, error) {
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return v, nil
		}
	}
	return configRoot, nil
}

// PathsFor lays out app paths under the given roots. Non-empty entries of env
// named in baseEnv for goos replace the matching root.
func PathsFor(goos string, env map[string]string, configRoot, dataRoot, appName string) (Paths, error) {
	if configRoot == "" || dataRoot == "" {
		return Paths{}, ErrEmptyBaseDir
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, ErrEmptyAppName
	}
	if keys, ok := baseEnv[goos]; ok {
		if v := env[keys.config]; v != "" {
			configRoot = v
		}
		if v := env[keys.data]; v != "" {
			dataRoot = v
		}
	}

	configDir := filepath.Join(configRoot, appName)
	dataDir := filepath.Join(dataRoot, appName)
	return Paths{
		ConfigDir:  configDir,
		ConfigPath: filepath.Join(configDir, configFileName),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
	}, nil
}
