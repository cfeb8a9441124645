// Package gateway provides the public API for embedding the webhook gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/shonenark/ark-gateway/internal/runtime"
)

// Gateway is the webhook gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithConfigFile("config.yaml"),
//	    gateway.WithSQLite("./data/ark.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile

	// Storage
	WithSQLite        = runtime.WithSQLite
	WithMemoryStorage = runtime.WithMemoryStorage
	WithStore         = runtime.WithStore

	// Advanced options
	WithLogger    = runtime.WithLogger
	WithForwarder = runtime.WithForwarder
)
