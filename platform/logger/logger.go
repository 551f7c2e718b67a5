// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// TenantIDKey is the context key for the resolved tenant ID
	TenantIDKey contextKey = "tenant_id"
	// MessageIDKey is the context key for the inbound channel message ID
	MessageIDKey contextKey = "message_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, tenant_id and message_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok && tenantID != "" {
		newLogger = newLogger.WithTenant(tenantID)
	}

	if messageID, ok := ctx.Value(MessageIDKey).(string); ok && messageID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("message_id", messageID))}
	}

	return newLogger
}

// WithTenant returns a logger with tenant ID
func (l *Logger) WithTenant(tenantID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("tenant_id", tenantID)),
	}
}

// WithAddress returns a logger tagged with a masked channel address.
func (l *Logger) WithAddress(address string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("address", MaskAddress(address))),
	}
}

// MaskAddress hides the middle digits of a phone-like address.
func MaskAddress(address string) string {
	if len(address) <= 7 {
		return address
	}
	return address[:len(address)-7] + "****" + address[len(address)-3:]
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ToolCall logs a single tool invocation requested by the reasoning service.
func (l *Logger) ToolCall(name string, round int, ok bool, latency time.Duration) {
	level := slog.LevelInfo
	if !ok {
		level = slog.LevelWarn
	}
	l.Log(context.Background(), level, "tool_call",
		slog.String("tool", name),
		slog.Int("round", round),
		slog.Bool("ok", ok),
		slog.Int64("latency_ms", latency.Milliseconds()),
	)
}

// FlowTransition logs a wizard phase change.
func (l *Logger) FlowTransition(flow, from, to, step string) {
	l.Debug("flow_transition",
		slog.String("flow", flow),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("step", step),
	)
}

// ExternalError logs a failed call to an external collaborator.
func (l *Logger) ExternalError(service string, err error) {
	l.Warn("external_error",
		slog.String("service", service),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
