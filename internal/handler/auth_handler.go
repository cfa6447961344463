package handler

import (
	"context"
	"net/http"

	"go-task-manager/internal/auth"
	"go-task-manager/internal/middleware"
	"go-task-manager/internal/model"
	"go-task-manager/pkg/apierror"
)

type authService interface {
	Login(ctx context.Context, req model.LoginRequest, presented string) (model.LoginResult, error)
	Signup(ctx context.Context, req model.SignupRequest) (model.AuthUser, error)
	Refresh(ctx context.Context, presented string) (model.TokenResult, error)
	Me(ctx context.Context, identity model.Identity) (model.AuthUser, error)
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	presented, _ := auth.BearerToken(r.Header)
	result, err := h.service.Login(r.Context(), payload, presented)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.service.Signup(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

// Refresh takes the current token from the Authorization header.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented, ok := auth.BearerToken(r.Header)
	if !ok {
		writeError(w, auth.ErrNoToken)
		return
	}

	result, err := h.service.Refresh(r.Context(), presented)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	user, err := h.service.Me(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}
