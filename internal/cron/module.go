package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/rollcall/internal/core"
	"github.com/flemzord/rollcall/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// ServiceName is the AppContext service under which the *Scheduler is published.
const ServiceName = "scheduler.cron"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ Querier           = (*Scheduler)(nil)
	_ Querier           = (*Registry)(nil)
)

// Config holds scheduler module configuration.
type Config struct {
	// PollInterval is the idle wait when no job is registered. Defaults to 1s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timezone is the IANA zone triggers are evaluated in. Defaults to UTC.
	Timezone string `yaml:"timezone"`
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}

// Module runs the process-wide Scheduler.
type Module struct {
	config    Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:    "scheduler.cron",
		New:   func() core.Module { return &Module{} },
		Stage: core.StageWorkers,
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	loc, err := time.LoadLocation(m.config.Timezone)
	if err != nil {
		return fmt.Errorf("cron: invalid timezone %q: %w", m.config.Timezone, err)
	}

	m.scheduler = NewScheduler(m.logger,
		WithPollInterval(m.config.PollInterval),
		WithLocation(loc),
		WithMetrics(telemetry.Registerer(ctx)),
	)
	ctx.RegisterService(ServiceName, m.scheduler)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.PollInterval <= 0 {
		return fmt.Errorf("cron: poll_interval must be positive, got %s", m.config.PollInterval)
	}
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.scheduler.Start(context.Background())
}

// Stop implements core.Stopper. It returns once the shutdown hook completed.
func (m *Module) Stop(ctx context.Context) error {
	return m.scheduler.Shutdown(ctx)
}

// Scheduler returns the module's scheduler.
func (m *Module) Scheduler() *Scheduler { return m.scheduler }
