// Package app provides the entry point shared by the rollcall commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/rollcall/internal/config"
	"github.com/flemzord/rollcall/internal/core"
	"github.com/flemzord/rollcall/internal/reload"
	"github.com/flemzord/rollcall/internal/security"
	"github.com/flemzord/rollcall/internal/telemetry"
)

// ErrNoConfig is returned by ResolveConfigPath when no file exists in any
// searched location.
var ErrNoConfig = errors.New("no configuration file found")

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called and, when nothing is found,
	// the built-in default configuration is used.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// Workspace overrides the default working directory.
	Workspace string

	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Context, when set, is the parent of the signal-aware run context.
	// Cancelling it shuts the application down like SIGTERM does.
	Context context.Context

	// ReloadInterval is how often the configuration file is polled for
	// edits. Zero means five seconds.
	ReloadInterval time.Duration

	// OnStarted, when set, is called once every module has started.
	OnStarted func(*core.App)
}

// Run loads configuration, starts all modules, and blocks until SIGINT or
// SIGTERM is received, then stops the modules in reverse start order.
// Start-up failures, including failing to bind the listen address, are
// returned.
func Run(params RunParams) error {
	cfg, cfgPath, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}
	// Record the file state now so edits made during start-up are reloaded.
	var watcher *reload.Watcher
	if cfgPath != "" {
		watcher = reload.NewWatcher(cfgPath, params.ReloadInterval)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	levelName := cfg.Log.Level
	if params.LogLevel != "" {
		levelName = params.LogLevel
	}
	level := slog.LevelInfo
	if levelName != "" {
		if level, err = config.ParseLevel(levelName); err != nil {
			return err
		}
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	redactor := security.NewRedactor()
	logger := slog.New(security.NewRedactingHandler(
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: levelVar}),
		redactor,
	))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	workspace := params.Workspace
	if workspace == "" {
		workspace = DefaultWorkspace()
	}

	logger.Info("rollcall starting",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"data_dir", dataDir,
	)

	appCtx := core.NewAppContext(logger, dataDir, workspace)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(telemetry.RegistryService, telemetry.NewRegistry())
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService(security.RedactorService, redactor)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}

	// Jobs and the shutdown hook are registered between LoadModules and
	// Start so the first due instant is computed before the loop runs.
	if err := wireScheduler(appCtx, logger); err != nil {
		application.Close()
		return err
	}

	parent := params.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(); err != nil {
		return err
	}
	if watcher != nil {
		watchConfig(ctx, watcher, cfg, levelVar, params.LogLevel != "", logger)
	}
	if params.OnStarted != nil {
		params.OnStarted(application)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received", "cause", context.Cause(ctx))
	if err := application.Stop(); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// LoadConfig loads the configuration at path, or the first file found by
// ResolveConfigPath when path is empty. When no file is found the built-in
// default configuration is returned with an empty path.
func LoadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		switch {
		case errors.Is(err, ErrNoConfig):
			return config.Default(), "", nil
		case err != nil:
			return nil, "", err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/rollcall/rollcall.yaml → ~/.config/rollcall/rollcall.yaml → ./rollcall.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "rollcall", "rollcall.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "rollcall", "rollcall.yaml"))
	}

	candidates = append(candidates, "rollcall.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfig, candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/rollcall if set, otherwise ~/.local/share/rollcall per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "rollcall")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "rollcall")
}

// DefaultWorkspace returns the current working directory.
func DefaultWorkspace() string {
	dir, _ := os.Getwd()
	return dir
}
