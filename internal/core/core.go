package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of modules.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	info    ModuleInfo
	module  Module
	started bool
}

// NewApp creates a new App with the given context.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// Context returns the application context shared with modules.
func (a *App) Context() *AppContext { return a.ctx }

// LoadModules instantiates, provisions, and validates all modules for the
// given IDs, in start-up order. If any step fails, already-loaded modules are
// cleaned up.
func (a *App) LoadModules(ids []string) error {
	infos := make([]ModuleInfo, 0, len(ids))
	for _, id := range ids {
		info, ok := GetModule(id)
		if !ok {
			return fmt.Errorf("loading module %s: unknown module", id)
		}
		infos = append(infos, info)
	}
	slices.SortStableFunc(infos, CompareStartOrder)

	for _, info := range infos {
		mod, err := a.ctx.LoadModule(string(info.ID))
		if err != nil {
			a.cleanup()
			return fmt.Errorf("loading module %s: %w", info.ID, err)
		}
		a.modules = append(a.modules, moduleInstance{
			info:   info,
			module: mod,
		})
		a.logger.Info("module loaded", "module", string(info.ID))
	}
	return nil
}

// Modules returns the IDs of the loaded modules in start-up order.
func (a *App) Modules() []ModuleID {
	ids := make([]ModuleID, len(a.modules))
	for i, mi := range a.modules {
		ids[i] = mi.info.ID
	}
	return ids
}

// Start starts all loaded modules that implement Starter, in order.
// If any Start() fails, already-started modules are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			mi.started = true
			continue
		}
		a.logger.Info("starting module", "module", string(mi.info.ID))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.info.ID), "error", err)
			stopErr := a.stopModules(i - 1)
			return errors.Join(fmt.Errorf("starting module %s: %w", mi.info.ID, err), stopErr)
		}
		mi.started = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop stops all started modules in reverse order with a timeout. Every
// module is asked to stop even when an earlier one fails; the failures are
// returned joined.
func (a *App) Stop() error {
	return a.stopModules(len(a.modules) - 1)
}

func (a *App) stopModules(fromIndex int) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := fromIndex; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		if s, ok := mi.module.(Stopper); ok {
			a.logger.Info("stopping module", "module", string(mi.info.ID))
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("module stop error", "module", string(mi.info.ID), "error", err)
				errs = append(errs, fmt.Errorf("stopping module %s: %w", mi.info.ID, err))
			}
		}
		mi.started = false
	}
	return errors.Join(errs...)
}

// Close stops every loaded module, started or not, and forgets them. It is
// meant for abandoning an App between LoadModules and Start.
func (a *App) Close() {
	a.cleanup()
}

func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		mi := &a.modules[i]
		if s, ok := mi.module.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
	a.modules = nil
}

// Run starts all modules and blocks until ctx is cancelled, then stops them.
// A failed stop is returned.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown requested", "cause", context.Cause(ctx))

	if err := a.Stop(); err != nil {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
