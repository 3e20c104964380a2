// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services read them. Keeping
// this package free of net/http lets domain code depend on it without pulling
// transport concerns along.
//
// The request time is the service clock: every period boundary, validity
// window and expiry check inside one request observes the same instant, and
// tests pin time with WithTime.
package requestcontext

import (
	"context"
	"time"

	"gatepass/pkg/domain"
)

type (
	userIDKey      struct{}
	userNameKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// UserID retrieves the authenticated user id from the context.
func UserID(ctx context.Context) domain.UserID {
	if v, ok := ctx.Value(userIDKey{}).(domain.UserID); ok {
		return v
	}
	return ""
}

// WithUserID injects an authenticated user id into the context.
func WithUserID(ctx context.Context, userID domain.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserName retrieves the authenticated user's display name from the context.
func UserName(ctx context.Context) string {
	if v, ok := ctx.Value(userNameKey{}).(string); ok {
		return v
	}
	return ""
}

// WithUserName injects the authenticated user's display name into the context.
func WithUserName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, userNameKey{}, name)
}

// RequestID retrieves the request correlation id from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request-scoped time, falling back to the wall clock when no
// middleware captured one (background jobs, tests that do not care).
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithTime injects a specific instant into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
