// Package auth is the server-side access gate. Business handlers obtain the
// caller's identity only through Authenticate and RequireRole.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"go-task-manager/internal/model"
	"go-task-manager/internal/token"
	"go-task-manager/pkg/apierror"
)

var (
	ErrNoToken          = apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "no token provided", http.StatusUnauthorized)
	ErrInvalidToken     = apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "invalid or expired token", http.StatusUnauthorized)
	ErrInsufficientRole = apierror.Wrap(model.ErrForbidden, "FORBIDDEN", "insufficient permissions", http.StatusForbidden)
)

type tokenVerifier interface {
	Verify(tokenString string) (model.Identity, error)
}

type observer interface {
	ObserveVerification(result string)
	ObserveAccess(outcome string)
}

// Gate holds no per-request state and is safe for concurrent use.
type Gate struct {
	verifier tokenVerifier
	observer observer
}

func NewGate(verifier tokenVerifier, observer observer) *Gate {
	return &Gate{verifier: verifier, observer: observer}
}

func (g *Gate) Authenticate(header http.Header) (model.Identity, error) {
	identity, err := g.authenticate(header)
	if err != nil {
		return model.Identity{}, err
	}

	g.observeAccess("allowed")
	return identity, nil
}

func (g *Gate) RequireRole(header http.Header, role model.Role) (model.Identity, error) {
	identity, err := g.authenticate(header)
	if err != nil {
		return model.Identity{}, err
	}

	if identity.Role != role {
		g.observeAccess("forbidden")
		return model.Identity{}, ErrInsufficientRole
	}

	g.observeAccess("allowed")
	return identity, nil
}

func (g *Gate) authenticate(header http.Header) (model.Identity, error) {
	raw, ok := BearerToken(header)
	if !ok {
		g.observeAccess("unauthorized")
		return model.Identity{}, ErrNoToken
	}

	identity, err := g.verifier.Verify(raw)
	g.observeVerification(token.Reason(err))
	if err != nil {
		slog.Debug("token rejected", "reason", token.Reason(err))
		g.observeAccess("unauthorized")
		return model.Identity{}, ErrInvalidToken
	}

	return identity, nil
}

// BearerToken extracts the credential of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(header http.Header) (string, bool) {
	value := strings.TrimSpace(header.Get("Authorization"))
	if len(value) < 7 || !strings.EqualFold(value[:7], "bearer ") {
		return "", false
	}

	raw := strings.TrimSpace(value[7:])
	if raw == "" {
		return "", false
	}

	return raw, true
}

func (g *Gate) observeVerification(result string) {
	if g.observer != nil {
		g.observer.ObserveVerification(result)
	}
}

func (g *Gate) observeAccess(outcome string) {
	if g.observer != nil {
		g.observer.ObserveAccess(outcome)
	}
}
