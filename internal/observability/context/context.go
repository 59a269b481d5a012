// Package context carries request-scoped identifiers used to enrich logs and spans.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type societyIDKey struct{}
type actorKey struct{}

type actor struct {
	role string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

func WithSocietyID(ctx context.Context, societyID string) context.Context {
	societyID = strings.TrimSpace(societyID)
	if societyID == "" {
		return ctx
	}
	return context.WithValue(ctx, societyIDKey{}, societyID)
}

func SocietyIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(societyIDKey{}).(string)
	return value
}

func WithActor(ctx context.Context, role, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		role: strings.TrimSpace(role),
		id:   strings.TrimSpace(id),
	})
}

// ActorFromContext returns the actor role and id, empty when the request is anonymous.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.role, value.id
}
