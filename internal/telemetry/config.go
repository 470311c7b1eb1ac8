package telemetry

import (
	"errors"
	"fmt"
)

const defaultServiceName = "rollcall"

// Config configures trace export.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address (host:port). Tracing is
	// disabled when empty.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of root spans sampled. Defaults to 1.
	SampleRatio *float64 `yaml:"sample_ratio"`
}

func (c *Config) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRatio == nil {
		r := 1.0
		c.SampleRatio = &r
	}
}

func (c *Config) validate() error {
	if c.SampleRatio != nil && (*c.SampleRatio < 0 || *c.SampleRatio > 1) {
		return fmt.Errorf("telemetry: sample_ratio must be within [0, 1], got %v", *c.SampleRatio)
	}
	if c.ServiceName == "" {
		return errors.New("telemetry: service_name must not be empty")
	}
	return nil
}
