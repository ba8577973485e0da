package auth

import (
	"context"

	"github.com/inkpress/inkpress/internal/policy"
)

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor policy.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the request actor, or the anonymous actor when
// no credential was presented.
func ActorFromContext(ctx context.Context) policy.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(policy.Actor)
	return actor
}
