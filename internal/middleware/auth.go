package middleware

import (
	"context"
	"errors"
	"net/http"

	"go-task-manager/internal/model"
	"go-task-manager/pkg/apierror"
)

type accessGate interface {
	Authenticate(header http.Header) (model.Identity, error)
	RequireRole(header http.Header, role model.Role) (model.Identity, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

type AuthMiddleware struct {
	gate accessGate
}

func NewAuthMiddleware(gate accessGate) *AuthMiddleware {
	return &AuthMiddleware{gate: gate}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.gate.Authenticate(r.Header)
		if err != nil {
			writeAccessError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (m *AuthMiddleware) RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := m.gate.RequireRole(r.Header, role)
			if err != nil {
				writeAccessError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

func writeAccessError(w http.ResponseWriter, err error) {
	status, code, message := http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token"

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status, code, message = apiErr.HTTPStatus, apiErr.Code, apiErr.Message
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	writeErrorEnvelope(w, status, code, message)
}
