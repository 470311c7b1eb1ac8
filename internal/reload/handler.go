package reload

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/rollcall/internal/config"
	"gopkg.in/yaml.v3"
)

// Handler re-reads the configuration file and applies what can change
// without a restart.
type Handler struct {
	path   string
	level  *slog.LevelVar
	logger *slog.Logger

	mu      sync.Mutex
	current *config.Config
	pinned  bool
}

// NewHandler creates a handler for the file at path. current is the
// configuration the process started with; level is the variable backing
// the process log handler.
func NewHandler(path string, current *config.Config, level *slog.LevelVar, logger *slog.Logger) *Handler {
	return &Handler{
		path:    path,
		level:   level,
		logger:  logger,
		current: current,
	}
}

// PinLevel stops reloads from touching the log level, for when it was set
// on the command line.
func (h *Handler) PinLevel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pinned = true
}

// Reload loads and validates the file. On success the log level is applied
// and modules whose configuration changed are reported. A failed reload
// leaves the running configuration untouched.
func (h *Handler) Reload() error {
	cfg, err := config.Load(h.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.pinned {
		level := slog.LevelInfo
		if cfg.Log.Level != "" {
			// Validate already accepted the level.
			level, _ = config.ParseLevel(cfg.Log.Level)
		}
		if level != h.level.Level() {
			h.level.Set(level)
			h.logger.Info("reload: log level changed", "level", level.String())
		}
	}

	for _, id := range changedModules(h.current, cfg) {
		h.logger.Warn("reload: module configuration changed, restart to apply", "module", id)
	}
	if h.current.DataDir != cfg.DataDir {
		h.logger.Warn("reload: data_dir changed, restart to apply")
	}

	h.current = cfg
	return nil
}

// changedModules lists module IDs added, removed or reconfigured between
// old and next, sorted.
func changedModules(old, next *config.Config) []string {
	var out []string
	for id, node := range next.Modules {
		prev, ok := old.Modules[id]
		if !ok || !sameNode(&prev, &node) {
			out = append(out, id)
		}
	}
	for id := range old.Modules {
		if _, ok := next.Modules[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func sameNode(a, b *yaml.Node) bool {
	ab, errA := yaml.Marshal(a)
	bb, errB := yaml.Marshal(b)
	return errA == nil && errB == nil && string(ab) == string(bb)
}
