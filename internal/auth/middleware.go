package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/shared"
)

// Middleware resolves bearer credentials into request actors.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate attaches the actor behind an Authorization bearer token.
// Requests without the header proceed as anonymous; a header that does
// not resolve to an active account is rejected with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		actor, err := m.Service.ResolveActor(r.Context(), strings.TrimSpace(token))
		if err != nil {
			if m.Logger != nil && !httpx.IsClientError(err) {
				m.Logger.Error("resolve actor", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFromContext(r.Context()).IsAnonymous() {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
