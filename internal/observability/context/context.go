package context

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorRoleKey
	actorIDKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithActor records who is calling. The role is asserted by the upstream gateway.
func WithActor(ctx context.Context, role, id string) context.Context {
	ctx = context.WithValue(ctx, actorRoleKey, strings.TrimSpace(role))
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(id))
}

func ActorFromContext(ctx context.Context) (role string, id string) {
	if ctx == nil {
		return "", ""
	}
	role, _ = ctx.Value(actorRoleKey).(string)
	id, _ = ctx.Value(actorIDKey).(string)
	return role, id
}
