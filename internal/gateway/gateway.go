// Package gateway serves the HTTP front end: the greeting, echo and user
// lookup routes, health and Prometheus endpoints, and optional
// authenticated admin routes. It binds to loopback by default and follows
// the module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/rollcall/internal/core"
	"github.com/flemzord/rollcall/internal/cron"
	"github.com/flemzord/rollcall/internal/security"
	"github.com/flemzord/rollcall/internal/store"
	"github.com/flemzord/rollcall/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	listener  net.Listener
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	tracer    trace.Tracer
	startedAt time.Time

	audit     *security.AuditLogger
	auditFile *os.File
	limiter   *security.RateLimiter

	// Resolved lazily at Start() via service registry.
	handle    *store.Handle
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:    "gateway.http",
		New:   func() core.Module { return &Gateway{} },
		Stage: core.StageFrontend,
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.tracer = otel.Tracer("github.com/flemzord/rollcall/internal/gateway")

	reg, ok := telemetry.Registry(ctx)
	if !ok {
		reg = telemetry.NewRegistry()
	}
	g.gatherer = reg
	g.metrics = NewMetrics(reg)

	ctx.RegisterService("gateway.metrics", g.metrics)

	if g.config.Auth.IsConfigured() {
		if err := g.provisionAuth(ctx); err != nil {
			return err
		}
	}
	return nil
}

// provisionAuth registers the auth secrets with the process redactor and
// opens the audit log and rate limiter guarding the admin routes.
func (g *Gateway) provisionAuth(ctx *core.AppContext) error {
	redactor, ok := core.ServiceAs[*security.Redactor](ctx, security.RedactorService)
	if !ok {
		redactor = security.NewRedactor()
	}
	redactor.AddLiteral(g.config.Auth.BearerToken)
	redactor.AddLiteral(g.config.Auth.BasicPass)

	g.limiter = security.NewRateLimiter(g.config.Auth.RateLimit)

	auditCfg := security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent: func(e security.AuditEvent) {
			level := slog.LevelDebug
			if e.Type != security.EventAuthSuccess {
				level = slog.LevelWarn
			}
			g.logger.Log(context.Background(), level, "gateway: auth "+string(e.Type),
				"remote", e.RemoteAddr, "path", e.Path, "request_id", e.RequestID)
		},
	}
	if path := g.config.Auth.AuditLog; path != "" {
		if !filepath.IsAbs(path) && ctx.DataDir != "" {
			path = filepath.Join(ctx.DataDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("gateway: create audit log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("gateway: open audit log: %w", err)
		}
		g.auditFile = f
		auditCfg.Writer = f
	}
	g.audit = security.NewAuditLogger(auditCfg)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server. A bind failure is
// returned and aborts start-up.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", g.config.Bind, err)
	}
	g.listener = ln

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds the data access handle and scheduler. A missing
// store degrades to an unavailable handle; a missing scheduler is reported
// as absent by /health.
func (g *Gateway) resolveServices() {
	if h, ok := core.ServiceAs[*store.Handle](g.appCtx, store.HandleService); ok {
		g.handle = h
	} else {
		g.handle = store.Unavailable(errors.New("no store module loaded"))
		g.logger.Warn("gateway: no data access handle registered, user lookups will fail")
	}
	if s, ok := core.ServiceAs[*cron.Scheduler](g.appCtx, cron.ServiceName); ok {
		g.scheduler = s
	}
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	defer g.closeAudit()
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	if err := g.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return nil
}

func (g *Gateway) closeAudit() {
	if g.auditFile == nil {
		return
	}
	if err := g.auditFile.Close(); err != nil {
		g.logger.Warn("gateway: close audit log", "error", err)
	}
	g.auditFile = nil
}
