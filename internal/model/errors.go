package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Access errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Password reset errors
	ErrEmailNotFound         = errors.New("email not found")
	ErrResetNotFound         = errors.New("no reset request for email")
	ErrResetInvalidOrExpired = errors.New("invalid or expired reset code")
	ErrResetCodeInvalid      = errors.New("reset code not found")
	ErrResetCodeExpired      = errors.New("reset code expired")
	ErrResetCodeUsed         = errors.New("reset code already used")
	ErrResetCodeLocked       = errors.New("too many wrong reset codes")
	ErrMailDelivery          = errors.New("reset code could not be delivered")
	ErrSamePassword          = errors.New("new password matches current password")
	ErrWeakPassword          = errors.New("password does not meet policy")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
