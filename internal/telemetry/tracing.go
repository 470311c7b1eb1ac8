package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/rollcall/internal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Tracing{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Tracing)(nil)
	_ core.Provisioner  = (*Tracing)(nil)
	_ core.Validator    = (*Tracing)(nil)
	_ core.Stopper      = (*Tracing)(nil)
)

// Tracing installs the global OpenTelemetry tracer provider.
type Tracing struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (t *Tracing) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:    "telemetry.otel",
		New:   func() core.Module { return &Tracing{} },
		Stage: core.StageTelemetry,
	}
}

// Configure implements core.Configurable.
func (t *Tracing) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telemetry: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (t *Tracing) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.logger = ctx.Logger

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if t.config.Endpoint == "" {
		t.logger.Info("trace export disabled (no endpoint configured)")
		return nil
	}

	provider, err := NewTracerProvider(context.Background(), t.config)
	if err != nil {
		return err
	}
	t.provider = provider
	otel.SetTracerProvider(provider)

	t.logger.Info("trace export enabled",
		"endpoint", t.config.Endpoint,
		"service", t.config.ServiceName,
		"sample_ratio", *t.config.SampleRatio,
	)
	return nil
}

// Validate implements core.Validator.
func (t *Tracing) Validate() error {
	return t.config.validate()
}

// Stop implements core.Stopper. Pending spans are flushed.
func (t *Tracing) Stop(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	return nil
}

// NewTracerProvider builds a batching tracer provider exporting over OTLP/HTTP.
func NewTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	cfg.defaults()

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*cfg.SampleRatio))),
	), nil
}
