package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		slog.WarnContext(ctx, "health check failed", "error", err)
		writeSuccess(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"}, nil)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"}, nil)
}
