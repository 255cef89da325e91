// Package requestcontext provides transport-independent accessors for
// request-scoped values that services read: the acting account, the request
// ID for log correlation, and the request clock.
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, adminAccountID)
package requestcontext

import (
	"context"
	"time"

	id "eap/pkg/domain"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Actor returns the account performing the operation, or the zero ID.
func Actor(ctx context.Context) id.AccountID {
	if a, ok := ctx.Value(actorKey{}).(id.AccountID); ok {
		return a
	}
	return id.AccountID{}
}

func WithActor(ctx context.Context, actor id.AccountID) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests without a clock).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request clock, keeping every timestamp written by one
// operation identical.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
