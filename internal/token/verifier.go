package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-task-manager/internal/model"
)

// Verify checks a token and returns the identity it carries. The signature
// is checked before any claim is read; the clock is read once.
func (c *Codec) Verify(tokenString string) (model.Identity, error) {
	claims, err := c.verifyAt(tokenString, c.now())
	if err != nil {
		return model.Identity{}, err
	}

	return claims.Identity(), nil
}

// Refresh re-issues a still valid token with fresh iat/exp and the same
// identity claims. The presented token is left untouched.
func (c *Codec) Refresh(tokenString string) (string, error) {
	now := c.now()

	claims, err := c.verifyAt(tokenString, now)
	if err != nil {
		return "", err
	}

	return c.issueAt(claims.Identity(), c.ttl, now)
}

func (c *Codec) verifyAt(tokenString string, now time.Time) (Claims, error) {
	if _, err := Decode(tokenString); err != nil {
		return Claims{}, err
	}

	var claims Claims
	// HMAC comparison inside the parser is constant time (hmac.Equal).
	if _, err := c.verifier.ParseWithClaims(tokenString, &claims, c.key); err != nil {
		return Claims{}, ErrInvalidSignature
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.Issuer == "" {
		return Claims{}, ErrMissingClaims
	}

	if !now.Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpired
	}

	if claims.Issuer != c.issuer {
		return Claims{}, ErrInvalidIssuer
	}

	return claims, nil
}

func (c *Codec) key(*jwt.Token) (any, error) {
	return c.secret, nil
}
