package service

import (
	"net/http"

	"go-task-manager/internal/model"
	"go-task-manager/pkg/apierror"
)

var (
	ErrInvalidCredentials = apierror.Wrap(model.ErrInvalidCredentials, "UNAUTHORIZED", "invalid credentials", http.StatusUnauthorized)
	ErrUserNotFound       = apierror.Wrap(model.ErrUserNotFound, "NOT_FOUND", "user not found", http.StatusNotFound)
	ErrSignupPassword     = apierror.Wrap(model.ErrWeakPassword, "WEAK_PASSWORD",
		"password must be at least 8 characters and include upper and lower case letters, a digit and a special character", http.StatusBadRequest)

	ErrEmailNotFound        = apierror.Wrap(model.ErrEmailNotFound, "EMAIL_NOT_FOUND", "no account is registered with this email", http.StatusNotFound)
	ErrCodeInvalidOrExpired = apierror.Wrap(model.ErrResetInvalidOrExpired, "INVALID_CODE", "invalid or expired reset code", http.StatusBadRequest)
	ErrCodeInvalid          = apierror.Wrap(model.ErrResetCodeInvalid, "INVALID_CODE", "invalid reset code", http.StatusBadRequest)
	ErrCodeUsed             = apierror.Wrap(model.ErrResetCodeUsed, "CODE_USED", "reset code has already been used", http.StatusBadRequest)
	ErrCodeLocked           = apierror.Wrap(model.ErrResetCodeLocked, "CODE_LOCKED", "too many wrong codes, request a new one", http.StatusBadRequest)
	ErrCodeExpired          = apierror.Wrap(model.ErrResetCodeExpired, "CODE_EXPIRED", "reset code has expired", http.StatusBadRequest)
	ErrSamePassword         = apierror.Wrap(model.ErrSamePassword, "SAME_PASSWORD", "new password must differ from the current password", http.StatusBadRequest)
	ErrResetPassword        = apierror.Wrap(model.ErrWeakPassword, "WEAK_PASSWORD",
		"password must be at least 11 characters and include a letter, a digit and a special character", http.StatusBadRequest)
	ErrMailDelivery = apierror.Wrap(model.ErrMailDelivery, "MAIL_FAILED", "could not deliver the reset code", http.StatusBadGateway)
)

func invalidInput(message string, details string) *apierror.APIError {
	err := apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", message, http.StatusBadRequest)
	err.Details = details
	return err
}

func alreadyExists(field string) *apierror.APIError {
	err := apierror.Wrap(model.ErrUserAlreadyExists, "ALREADY_EXISTS", field+" is already registered", http.StatusConflict)
	err.Details = field
	return err
}
