// Package sqlite implements the persistent user record store on top of
// modernc.org/sqlite (pure Go, no CGO) in WAL mode.
//
// The module opens the database once during provisioning and publishes the
// outcome as a store.Handle. An open failure does not abort start-up: the
// handle records it and every lookup reports store.ErrUnavailable.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/rollcall/internal/core"
	"github.com/flemzord/rollcall/internal/store"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ store.UserStore   = (*UserStore)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module provides the SQLite-backed data access handle.
type Module struct {
	config Config
	logger *slog.Logger
	users  *UserStore
	handle *store.Handle
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:    "store.sqlite",
		New:   func() core.Module { return &Module{} },
		Stage: core.StageStorage,
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, DefaultDBFile)
	}

	m.handle = store.Connect(context.Background(), func(c context.Context) (store.UserFinder, error) {
		users, err := Open(c, m.config)
		if err != nil {
			return nil, err
		}
		m.users = users
		return users, nil
	})
	ctx.RegisterService(store.HandleService, m.handle)

	if err := m.handle.Err(); err != nil {
		m.logger.Error("sqlite: store unavailable, lookups will fail",
			"path", m.config.Path,
			"error", err,
		)
		return nil
	}

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.users == nil {
		return nil
	}
	m.logger.Info("sqlite store stopping")
	return m.users.Close()
}

// Handle returns the data access handle built during provisioning.
func (m *Module) Handle() *store.Handle {
	return m.handle
}
