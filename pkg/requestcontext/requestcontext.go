// Package requestcontext carries per-request values (request ID, clock)
// through context so services stay free of transport concerns.
package requestcontext

import (
	"context"
	"time"
)

type requestIDKey struct{}
type clockKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID retrieves the request ID from the context, or "" if absent.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Clock returns the current time. Tests inject fixed clocks via WithClock.
type Clock func() time.Time

// WithClock stores a clock in the context so time-dependent transitions are
// deterministic under test.
func WithClock(ctx context.Context, clock Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, clock)
}

// Now returns the context clock's current time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if clock, ok := ctx.Value(clockKey{}).(Clock); ok && clock != nil {
		return clock()
	}
	return time.Now().UTC()
}
