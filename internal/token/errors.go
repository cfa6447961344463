package token

import "errors"

var (
	ErrMalformedToken   = errors.New("token: malformed")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrMissingClaims    = errors.New("token: missing required claims")
	ErrExpired          = errors.New("token: expired")
	ErrInvalidIssuer    = errors.New("token: invalid issuer")

	ErrMissingSecret = errors.New("token: signing secret is required")
	ErrMissingIssuer = errors.New("token: issuer is required")
)

// Reason maps a verification error to a short label for logs and metrics.
// It is never sent to clients.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMissingClaims):
		return "missing_claims"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidIssuer):
		return "invalid_issuer"
	default:
		return "error"
	}
}
