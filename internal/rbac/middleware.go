// Package rbac turns policy decisions into chi middleware for routes whose
// permission depends only on the actor.
package rbac

import (
	"log/slog"
	"net/http"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

// DenialRecorder counts refused decisions.
type DenialRecorder interface {
	PolicyDenied(action, reason string)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Metrics DenialRecorder
	Logger  *slog.Logger
}

// Require admits the request when decide allows the current actor.
// Anonymous actors get 401, denied actors 403.
func (m Middleware) Require(action string, decide func(policy.Actor) policy.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := auth.ActorFromContext(r.Context())
			if actor.IsAnonymous() {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			decision := decide(actor)
			if !decision.Allowed {
				m.denied(action, actor, decision)
				httpx.RespondError(w, decision.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) denied(action string, actor policy.Actor, decision policy.Decision) {
	if m.Metrics != nil {
		m.Metrics.PolicyDenied(action, string(decision.Reason))
	}
	if m.Logger != nil {
		m.Logger.Debug("policy denied",
			slog.String("action", action),
			slog.Int64("actor_id", actor.ID),
			slog.String("reason", string(decision.Reason)))
	}
}
