package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// ModuleID identifies a module, namespaced by a dot ("store.sqlite").
type ModuleID string

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier used in configuration.
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module

	// Stage orders module start-up: lower stages start first and stop last.
	// Modules sharing a stage are ordered by ID.
	Stage int
}

// Module is the interface every module implements.
type Module interface {
	ModuleInfo() ModuleInfo
}

// Start-up stages used by the bundled modules. Storage comes up before the
// scheduler so jobs can read it, and the HTTP front end binds last.
const (
	StageTelemetry = 0
	StageStorage   = 10
	StageWorkers   = 20
	StageFrontend  = 30
)

// The optional lifecycle hooks, in call order. A module implements only
// the ones it needs.
type (
	// Configurable decodes the module's entry under "modules:". It is not
	// called when the entry is absent.
	Configurable interface {
		Configure(node *yaml.Node) error
	}

	// Provisioner applies defaults, opens resources and publishes services.
	Provisioner interface {
		Provision(ctx *AppContext) error
	}

	// Validator checks the provisioned module without side effects.
	Validator interface {
		Validate() error
	}

	// Starter launches background work once every module is loaded.
	Starter interface {
		Start() error
	}

	// Stopper releases what Start acquired, in reverse start order.
	Stopper interface {
		Stop(ctx context.Context) error
	}
)
