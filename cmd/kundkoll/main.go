package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	serveradapter "github.com/hylla/kundkoll/internal/adapters/server"
	"github.com/hylla/kundkoll/internal/adapters/storage/sqlite"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/config"
	"github.com/hylla/kundkoll/internal/platform"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// program is the part of tea.Program the CLI drives.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(ctx, newRootCmd(os.Stdout, os.Stderr), fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the command tree with plain cobra output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// rootOptions holds persistent flag values shared by every subcommand.
type rootOptions struct {
	stdout     io.Writer
	stderr     io.Writer
	env        config.Env
	envErr     error
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	now        func() time.Time
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr, now: time.Now}
	opts.env, opts.envErr = config.LoadEnv()

	appName := "kundkoll"
	if v := strings.TrimSpace(opts.env.AppName); v != "" {
		appName = v
	}
	devMode := version == "dev"
	if v, ok := opts.env.DevModeOverride(); ok {
		devMode = v
	}

	tuiFlags := &tuiOptions{}
	root := &cobra.Command{
		Use:          "kundkoll",
		Version:      version,
		Short:        "Local-first client tracking: task timelines, activity log and dashboard",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  kundkoll

  # Serve the REST API and MCP endpoint
  kundkoll serve --http 127.0.0.1:8080

  # Back up everything as YAML
  kundkoll export --format yaml --out backup.yaml
`),
		Args: cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.envErr
		},
		RunE: func(*cobra.Command, []string) error {
			return runTUI(opts, *tuiFlags)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", devMode, "use dev mode paths (<app>-dev)")
	tuiFlags.bind(root)

	root.AddCommand(
		newTUICmd(opts),
		newServeCmd(opts),
		newPathsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newIdentityCmd(opts),
	)
	return root
}

// runtimeState is the resolved configuration of one command invocation.
type runtimeState struct {
	paths      platform.Paths
	configPath string
	defaults   config.Config
	cfg        config.Config
	logger     *runtimeLogger
}

// resolvePaths returns platform paths with the --db or KUNDKOLL_DB_PATH override applied.
func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
	if err != nil {
		return platform.Paths{}, err
	}
	return paths.WithDBOverride(o.env.DBPath).WithDBOverride(o.dbPath), nil
}

// resolveConfigPath applies --config, then KUNDKOLL_CONFIG, then the platform default.
func (o *rootOptions) resolveConfigPath(paths platform.Paths) string {
	if v := strings.TrimSpace(o.configPath); v != "" {
		return v
	}
	if v := strings.TrimSpace(o.env.ConfigPath); v != "" {
		return v
	}
	return paths.ConfigPath
}

// loadConfig layers defaults, the TOML file, KUNDKOLL_* env, then --db.
func (o *rootOptions) loadConfig(configPath string, defaults config.Config) (config.Config, error) {
	cfg, err := config.Load(configPath, defaults)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg = o.env.Apply(cfg)
	if v := strings.TrimSpace(o.dbPath); v != "" {
		cfg.Database.Path = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("validate config %q: %w", configPath, err)
	}
	return cfg, nil
}

// openRuntime resolves paths, config and the runtime logger. muteConsole keeps
// the terminal clean for the TUI.
func (o *rootOptions) openRuntime(command string, muteConsole bool) (*runtimeState, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return nil, err
	}
	configPath := o.resolveConfigPath(paths)
	defaults := config.Default(paths.DBPath)
	cfg, err := o.loadConfig(configPath, defaults)
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, o.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if muteConsole {
		logger.SetConsoleEnabled(false)
	}
	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return &runtimeState{
		paths:      paths,
		configPath: configPath,
		defaults:   defaults,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// reload re-reads the config file with the same overlays as startup.
func (o *rootOptions) reload(rt *runtimeState) (config.Config, error) {
	return o.loadConfig(rt.configPath, rt.defaults)
}

func (rt *runtimeState) close(stderr io.Writer) {
	if err := rt.logger.Close(); err != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// openService opens the sqlite repository and builds the application service.
func openService(rt *runtimeState) (*app.Service, *sqlite.Repository, error) {
	rt.logger.Info("opening sqlite repository", "db_path", rt.cfg.Database.Path)
	repo, err := sqlite.Open(rt.cfg.Database.Path)
	if err != nil {
		rt.logger.Error("sqlite open failed", "db_path", rt.cfg.Database.Path, "err", err)
		return nil, nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	rt.logger.Info("sqlite repository ready", "db_path", rt.cfg.Database.Path, "migrations", "ensured")
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		DefaultUserID:    rt.cfg.Identity.UserID,
		DefaultDateRange: rt.cfg.DefaultDateRange(),
	})
	rt.logger.Debug("application service initialized", "default_user", rt.cfg.Identity.UserID)
	return svc, repo, nil
}

func closeRepo(rt *runtimeState, repo *sqlite.Repository) {
	if err := repo.Close(); err != nil {
		rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
	}
}
