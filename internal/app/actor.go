package app

import (
	"context"
	"strings"
)

// Actor carries normalized caller identity metadata for attribution.
type Actor struct {
	UserID      string
	DisplayName string
}

// actorContextKey stores context keys for actor metadata.
type actorContextKey struct{}

// WithActor attaches normalized actor identity metadata to context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, normalizeActor(actor))
}

// ActorFromContext returns normalized actor metadata when present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok {
		return Actor{}, false
	}
	actor = normalizeActor(actor)
	if actor.UserID == "" {
		return Actor{}, false
	}
	return actor, true
}

// actorID resolves the acting user, falling back to the configured default.
func (s *Service) actorID(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.UserID
	}
	return s.defaultUserID
}

// normalizeActor trims and canonicalizes actor metadata.
func normalizeActor(actor Actor) Actor {
	actor.UserID = strings.TrimSpace(actor.UserID)
	actor.DisplayName = strings.TrimSpace(actor.DisplayName)
	return actor
}
