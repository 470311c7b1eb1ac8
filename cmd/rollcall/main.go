// Package main is the entry point for the rollcall CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/rollcall/internal/config"
	"github.com/flemzord/rollcall/internal/core"
	"github.com/flemzord/rollcall/internal/store"
	"github.com/flemzord/rollcall/internal/trigger"
	"github.com/flemzord/rollcall/modules/store/sqlite"
	"github.com/flemzord/rollcall/pkg/app"
	"github.com/spf13/cobra"

	// Compiled-in modules.
	_ "github.com/flemzord/rollcall/internal/cron"
	_ "github.com/flemzord/rollcall/internal/gateway"
	_ "github.com/flemzord/rollcall/internal/telemetry"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rollcall:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rollcall",
		Short:         "User lookup service with a built-in cron scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), cronCmd(), userCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rollcall %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start rollcall with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				DataDir:    dataDir,
				LogLevel:   logLevel,
				Context:    cmd.Context(),
			})
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().String("data-dir", "", "Directory for persistent data")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
			dataDir := cfg.DataDir
			if dataDir == "" {
				dataDir = app.DefaultDataDir()
			}
			appCtx := core.NewAppContext(logger, dataDir, app.DefaultWorkspace())
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			a := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := a.LoadModules(ids); err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range a.Modules() {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Cron trigger utilities",
	}
	next := &cobra.Command{
		Use:   "next <expr>",
		Short: "Print the next due instants of a 6-field cron expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			tz, _ := cmd.Flags().GetString("tz")

			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid time zone %q: %w", tz, err)
			}
			tr, err := trigger.Parse(args[0], trigger.WithLocation(loc))
			if err != nil {
				return err
			}
			return printUpcoming(cmd.OutOrStdout(), tr, time.Now(), n)
		},
	}
	next.Flags().IntP("count", "n", 5, "Number of instants to print")
	next.Flags().String("tz", "UTC", "IANA time zone the expression is evaluated in")
	cmd.AddCommand(next)
	return cmd
}

func printUpcoming(w io.Writer, tr *trigger.Trigger, from time.Time, n int) error {
	for _, at := range tr.Upcoming(from, n) {
		if _, err := fmt.Fprintln(w, at.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Read and seed the user record store",
	}
	cmd.PersistentFlags().String("db", "", "Path to the SQLite database (default: data dir)")

	put := &cobra.Command{
		Use:   "put",
		Short: "Insert or replace a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			return withUserStore(cmd, func(ctx context.Context, s *sqlite.UserStore) error {
				u := store.User{ID: id, Name: name, Email: email, CreatedAt: time.Now().UTC()}
				if err := s.Put(ctx, u); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored user %s\n", id)
				return nil
			})
		},
	}
	put.Flags().String("id", "", "User id")
	put.Flags().String("name", "", "Display name")
	put.Flags().String("email", "", "Email address")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a user as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserStore(cmd, func(ctx context.Context, s *sqlite.UserStore) error {
				u, err := s.FindFirstByID(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(u)
			})
		},
	}

	cmd.AddCommand(put, get)
	return cmd
}

func withUserStore(cmd *cobra.Command, fn func(context.Context, *sqlite.UserStore) error) error {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = filepath.Join(app.DefaultDataDir(), sqlite.DefaultDBFile)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := sqlite.OpenPath(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, s)
}
