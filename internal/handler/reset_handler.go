package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go-task-manager/internal/model"
)

type resetService interface {
	RequestReset(ctx context.Context, email string) (model.PasswordReset, error)
	VerifyCode(ctx context.Context, email string, code string) error
	ConsumeReset(ctx context.Context, req model.ResetConsumeRequest) error
	CodeTTL() time.Duration
}

type ResetHandlerOptions struct {
	// RevealUnknownEmail answers 404 for unregistered emails and 502 for
	// failed deliveries instead of a response indistinguishable from success.
	RevealUnknownEmail bool
	// ExposeCode echoes the code as debug_code. Development only.
	ExposeCode bool
}

type ResetHandler struct {
	service resetService
	opts    ResetHandlerOptions
	now     func() time.Time
}

func NewResetHandler(service resetService, opts ResetHandlerOptions) *ResetHandler {
	return &ResetHandler{service: service, opts: opts, now: time.Now}
}

func (h *ResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	reset, err := h.service.RequestReset(r.Context(), payload.Email)
	// Unknown emails and failed deliveries answer like a sent code so the
	// response does not tell which emails are registered.
	hidden := errors.Is(err, model.ErrEmailNotFound) || errors.Is(err, model.ErrMailDelivery)
	if hidden && !h.opts.RevealUnknownEmail {
		slog.DebugContext(r.Context(), "reset request answered without a code", "error", err)
		writeSuccess(w, http.StatusOK, model.ResetRequestResult{
			Sent:      true,
			ExpiresAt: h.now().UTC().Add(h.service.CodeTTL()).Truncate(time.Second),
		}, nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	result := model.ResetRequestResult{Sent: true, ExpiresAt: reset.Expiry.UTC().Truncate(time.Second)}
	if h.opts.ExposeCode {
		result.DebugCode = reset.Code
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *ResetHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetVerifyRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.service.VerifyCode(r.Context(), payload.Email, payload.Code); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"verified": true}, nil)
}

func (h *ResetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetConsumeRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.service.ConsumeReset(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"reset": true}, nil)
}
