package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hylla/kundkoll/internal/adapters/client/httpclient"
	serveradapter "github.com/hylla/kundkoll/internal/adapters/server"
	servercommon "github.com/hylla/kundkoll/internal/adapters/server/common"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/config"
	"github.com/hylla/kundkoll/internal/tui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// tuiOptions holds flags of the interactive UI.
type tuiOptions struct {
	remote string
	screen string
}

func (t *tuiOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.remote, "remote", "", "REST base URL of a kundkoll server (default: local database)")
	cmd.Flags().StringVar(&t.screen, "screen", "", "initial screen: timeline, activity or dashboard")
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	flags := &tuiOptions{}
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runTUI(opts, *flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

func runTUI(opts *rootOptions, flags tuiOptions) error {
	screen, err := tui.ParseScreen(flags.screen)
	if err != nil {
		return err
	}
	rt, err := opts.openRuntime("tui", true)
	if err != nil {
		return err
	}
	defer rt.close(opts.stderr)
	cfg := rt.cfg

	var svc tui.Service
	remote := strings.TrimSpace(flags.remote)
	if remote == "" {
		remote = strings.TrimSpace(cfg.Remote.BaseURL)
	}
	if remote != "" {
		client, err := httpclient.New(remote,
			httpclient.WithUser(cfg.Identity.UserID, cfg.Identity.DisplayName),
			httpclient.WithTimeout(cfg.RemoteTimeout()),
		)
		if err != nil {
			return fmt.Errorf("configure remote client: %w", err)
		}
		rt.logger.Info("using remote service", "base_url", remote)
		svc = client
	} else {
		appSvc, repo, err := openService(rt)
		if err != nil {
			return err
		}
		defer closeRepo(rt, repo)
		svc = servercommon.NewAppServiceAdapter(appSvc)
	}

	m := tui.NewModel(svc,
		tui.WithUser(cfg.Identity.UserID, cfg.Identity.DisplayName),
		tui.WithLogger(rt.logger.Primary()),
		tui.WithDebounceQuiet(cfg.DebounceQuiet()),
		tui.WithDefaultDateRange(cfg.DefaultDateRange()),
		tui.WithCollapseByDefault(cfg.Timeline.CollapseByDefault),
		tui.WithInitialScreen(screen),
	)
	rt.logger.Info("starting tui program loop", "screen", screen.String())
	if _, err := programFactory(m).Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "tui")
	return nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.openRuntime("serve", false)
			if err != nil {
				return err
			}
			defer rt.close(opts.stderr)

			svc, repo, err := openService(rt)
			if err != nil {
				return err
			}
			defer closeRepo(rt, repo)

			serverCfg := serveradapter.Config{
				HTTPBind:       firstNonEmpty(httpBind, rt.cfg.Server.HTTPBind),
				APIEndpoint:    firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
				MCPEndpoint:    firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
				ServerName:     "kundkoll",
				ServerVersion:  version,
				AllowedOrigins: append([]string(nil), rt.cfg.Server.AllowedOrigins...),
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			watchConfig(ctx, opts, rt)

			rt.logger.Info("command flow start", "command", "serve", "bind", serverCfg.HTTPBind)
			err = serveCommandRunner(ctx, serverCfg, serveradapter.Dependencies{
				Service: servercommon.NewAppServiceAdapter(svc),
				Ready:   repo.Ping,
				Logger:  rt.logger.Primary(),
			})
			if err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP bind address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (default from config)")
	return cmd
}

// watchConfig reapplies the log level whenever the config file changes.
// A config dir that does not exist yet only disables reloading.
func watchConfig(ctx context.Context, opts *rootOptions, rt *runtimeState) {
	err := config.Watch(ctx, rt.configPath, func() {
		cfg, err := opts.reload(rt)
		if err != nil {
			rt.logger.Warn("config reload rejected", "config_path", rt.configPath, "err", err)
			return
		}
		level, err := cfg.Logging.ParseLevel()
		if err != nil {
			rt.logger.Warn("config reload rejected", "config_path", rt.configPath, "err", err)
			return
		}
		rt.logger.SetLevel(level)
		rt.logger.Info("config reloaded", "config_path", rt.configPath, "log_level", cfg.Logging.Level)
	})
	if err != nil {
		rt.logger.Warn("config watch disabled", "config_path", rt.configPath, "err", err)
	}
}

func newPathsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := opts.stdout
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", opts.resolveConfigPath(paths))
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			return nil
		},
	}
}

// snapshotFormat selects the export/import encoding.
type snapshotFormat string

const (
	formatJSON snapshotFormat = "json"
	formatYAML snapshotFormat = "yaml"
)

// parseSnapshotFormat resolves --format; empty infers from the file extension.
func parseSnapshotFormat(raw, path string) (snapshotFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return formatJSON, nil
	case "yaml", "yml":
		return formatYAML, nil
	case "":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return formatYAML, nil
		default:
			return formatJSON, nil
		}
	default:
		return "", fmt.Errorf("unsupported format %q (want json or yaml)", raw)
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		outPath         string
		format          string
		includeArchived bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of all data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseSnapshotFormat(format, outPath)
			if err != nil {
				return err
			}
			rt, err := opts.openRuntime("export", false)
			if err != nil {
				return err
			}
			defer rt.close(opts.stderr)
			svc, repo, err := openService(rt)
			if err != nil {
				return err
			}
			defer closeRepo(rt, repo)

			rt.logger.Info("command flow start", "command", "export", "format", f)
			if err := runExport(cmd.Context(), svc, outPath, f, includeArchived, opts.stdout); err != nil {
				rt.logger.Error("command flow failed", "command", "export", "err", err)
				return fmt.Errorf("run export command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "export")
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringVar(&format, "format", "", "snapshot format: json or yaml (default from --out extension)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", true, "include archived clients")
	return cmd
}

func runExport(ctx context.Context, svc *app.Service, outPath string, format snapshotFormat, includeArchived bool, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx, includeArchived)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := encodeSnapshot(snap, format)
	if err != nil {
		return err
	}
	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// encodeSnapshot renders snap as JSON, or as YAML carrying the same field
// names as the JSON form.
func encodeSnapshot(snap app.Snapshot, format snapshotFormat) ([]byte, error) {
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot json: %w", err)
	}
	if format == formatJSON {
		return append(encoded, '\n'), nil
	}
	var doc map[string]any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("convert snapshot to yaml: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot yaml: %w", err)
	}
	return out, nil
}

// decodeSnapshot parses JSON or YAML snapshot content.
func decodeSnapshot(content []byte, format snapshotFormat) (app.Snapshot, error) {
	if format == formatYAML {
		var doc any
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return app.Snapshot{}, fmt.Errorf("decode snapshot yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return app.Snapshot{}, fmt.Errorf("convert snapshot yaml: %w", err)
		}
		content = converted
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode snapshot json: %w", err)
	}
	return snap, nil
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var inPath, format string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a snapshot into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			f, err := parseSnapshotFormat(format, inPath)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			snap, err := decodeSnapshot(content, f)
			if err != nil {
				return err
			}

			rt, err := opts.openRuntime("import", false)
			if err != nil {
				return err
			}
			defer rt.close(opts.stderr)
			svc, repo, err := openService(rt)
			if err != nil {
				return err
			}
			defer closeRepo(rt, repo)

			rt.logger.Info("command flow start", "command", "import", "format", f, "clients", len(snap.Clients))
			if err := svc.ImportSnapshot(cmd.Context(), snap); err != nil {
				rt.logger.Error("command flow failed", "command", "import", "err", err)
				return fmt.Errorf("run import command: import snapshot: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "import")
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot file")
	cmd.Flags().StringVar(&format, "format", "", "snapshot format: json or yaml (default from --in extension)")
	return cmd
}

func newIdentityCmd(opts *rootOptions) *cobra.Command {
	var userID, displayName string
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Store the local user identity in the config file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			configPath := opts.resolveConfigPath(paths)
			if err := config.UpsertIdentity(configPath, userID, displayName); err != nil {
				return fmt.Errorf("persist identity config: %w", err)
			}
			_, _ = fmt.Fprintf(opts.stdout, "identity saved to %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id recorded on activities and dashboard preferences")
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
