// Package telemetry wires process-wide observability: the Prometheus
// registry shared by modules and the OpenTelemetry tracer provider.
package telemetry

import (
	"errors"

	"github.com/flemzord/rollcall/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RegistryService is the AppContext service name of the shared *prometheus.Registry.
const RegistryService = "telemetry.prometheus"

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Registry returns the shared registry published on ctx, if any.
func Registry(ctx *core.AppContext) (*prometheus.Registry, bool) {
	return core.ServiceAs[*prometheus.Registry](ctx, RegistryService)
}

// Registerer returns the shared registry as a Registerer, or nil when none
// was published. A nil Registerer leaves collectors unregistered.
func Registerer(ctx *core.AppContext) prometheus.Registerer {
	if reg, ok := Registry(ctx); ok {
		return reg
	}
	return nil
}

// Register registers c with reg and returns the collector to use. When an
// equal collector is already registered the existing one is returned, so
// several components may share a registry. A nil reg leaves c unregistered.
func Register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
