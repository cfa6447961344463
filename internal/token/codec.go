// Package token issues and verifies the HS256 session tokens that carry an
// authenticated identity between the client and the API.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-task-manager/internal/model"
)

const DefaultTTL = 7 * 24 * time.Hour

// Claims is the fixed payload shape. Unknown fields are ignored, wrongly
// typed fields make the token malformed.
type Claims struct {
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) Identity() model.Identity {
	role := c.Role
	if role == "" {
		role = model.RoleUser
	}

	return model.Identity{
		SubjectID:   c.UserID,
		DisplayName: c.Username,
		Email:       c.Email,
		Role:        role,
	}
}

// RawParts is a structurally decoded token whose signature has not been checked.
type RawParts struct {
	Header       map[string]any
	Claims       Claims
	SigningInput string
	Signature    string
}

type Codec struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	now      func() time.Time
	verifier *jwt.Parser
}

type Option func(*Codec)

func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		c.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(secret string, issuer string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if issuer == "" {
		return nil, ErrMissingIssuer
	}

	c := &Codec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    DefaultTTL,
		now:    time.Now,
		verifier: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			// Temporal and issuer checks run in Verify, in a fixed order.
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) Issuer() string {
	return c.issuer
}

// Issue signs a token for identity using the configured TTL.
func (c *Codec) Issue(identity model.Identity) (string, error) {
	return c.issueAt(identity, c.ttl, c.now())
}

func (c *Codec) IssueWithTTL(identity model.Identity, ttl time.Duration) (string, error) {
	return c.issueAt(identity, ttl, c.now())
}

func (c *Codec) issueAt(identity model.Identity, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID:   identity.SubjectID,
		Username: identity.DisplayName,
		Email:    identity.Email,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func (c *Codec) Decode(tokenString string) (RawParts, error) {
	return Decode(tokenString)
}

var structuralParser = jwt.NewParser(jwt.WithStrictDecoding())

// Decode splits and decodes a token without verifying it. Callers must not
// make authorization decisions from the result.
func Decode(tokenString string) (RawParts, error) {
	var claims Claims
	tok, parts, err := structuralParser.ParseUnverified(tokenString, &claims)
	// An unknown alg is a signature problem, not a structural one.
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return RawParts{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	return RawParts{
		Header:       tok.Header,
		Claims:       claims,
		SigningInput: parts[0] + "." + parts[1],
		Signature:    parts[2],
	}, nil
}
