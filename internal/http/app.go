// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/metrics"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and JWT settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness checks. Nil means always healthy.
	Health HealthChecker
	// Metrics records request metrics and serves /metrics. May be nil.
	Metrics *metrics.Metrics
	// Modules contains all HTTP-facing modules.
	Modules []Module
}
