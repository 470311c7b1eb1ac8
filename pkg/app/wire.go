package app

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"

	"github.com/flemzord/rollcall/internal/config"
	"github.com/flemzord/rollcall/internal/core"
	"github.com/flemzord/rollcall/internal/cron"
	"github.com/flemzord/rollcall/internal/reload"
)

// wireScheduler registers the built-in heartbeat job and the shutdown hook
// on the scheduler published by the scheduler.cron module. Must be called
// after LoadModules and before Start. Without a scheduler module it logs a
// warning and does nothing.
func wireScheduler(appCtx *core.AppContext, logger *slog.Logger) error {
	sched, ok := core.ServiceAs[*cron.Scheduler](appCtx, cron.ServiceName)
	if !ok {
		logger.Warn("scheduler module not loaded, background jobs disabled")
		return nil
	}

	sched.SetShutdownHook(func(context.Context) {
		logger.Info("shutdown done")
	})

	id, err := sched.Add(cron.HeartbeatSchedule,
		cron.LogTask(logger, "heartbeat"),
		cron.WithName("heartbeat"),
		cron.Exclusive(),
	)
	if err != nil {
		return fmt.Errorf("app: register heartbeat job: %w", err)
	}

	next, _ := sched.NextTick(id)
	logger.Info("heartbeat job registered",
		"job_id", id.String(),
		"schedule", cron.HeartbeatSchedule,
		"next", next,
	)
	return nil
}

// watchConfig reloads the configuration file when w sees it change or the
// process receives SIGHUP, until ctx is done. A level set on the command
// line is never overridden.
func watchConfig(ctx context.Context, w *reload.Watcher, cfg *config.Config, level *slog.LevelVar, pinLevel bool, logger *slog.Logger) {
	path := w.Path()
	handler := reload.NewHandler(path, cfg, level, logger)
	if pinLevel {
		handler.PinLevel()
	}

	w.NotifyOn(syscall.SIGHUP)
	go w.Watch(ctx, func(reason reload.Reason) {
		logger.Info("reloading configuration", "path", path, "reason", string(reason))
		if err := handler.Reload(); err != nil {
			logger.Warn("configuration reload failed, keeping current settings", "error", err)
		}
	})
}
