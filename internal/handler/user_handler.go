package handler

import (
	"context"
	"net/http"

	"go-task-manager/internal/model"
)

type userLister interface {
	ListUsers(ctx context.Context) (model.AuthUserList, error)
}

// UserHandler serves the admin-only user directory.
type UserHandler struct {
	service userLister
}

func NewUserHandler(service userLister) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users, &model.Meta{Page: 1, Limit: len(users.Users), Total: len(users.Users), TotalPages: 1})
}
