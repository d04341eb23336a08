// Package audit emits structured audit events for security-relevant
// actions: logins, logouts, role changes, store access changes.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storegrid.io/internal/auth"
	"storegrid.io/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and identity context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	attrs := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, zap.String("request_id", rid))
	}
	if ident, ok := auth.IdentityFromContext(ctx); ok {
		attrs = append(attrs,
			zap.String("user_id", ident.User.ID.String()),
			zap.String("tenant_id", ident.Tenant.ID.String()),
		)
	}
	if len(fields) > 0 {
		attrs = append(attrs, zap.Any("fields", fields))
	}

	obs.Logger().Info("audit", attrs...)
	return nil
}
