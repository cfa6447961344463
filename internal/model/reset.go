package model

import "time"

// PasswordReset is one row of the password_resets table. Rows are never
// deleted; Used flips to true exactly once.
type PasswordReset struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	Expiry    time.Time `json:"expiry"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
	// Failures counts wrong codes presented against this row.
	Failures int `json:"-"`
}

type ResetState string

const (
	ResetRequested           ResetState = "requested"
	ResetCodeVerifiedPending ResetState = "code_verified_pending"
	ResetConsumed            ResetState = "consumed"
)

func (r PasswordReset) Expired(now time.Time) bool {
	return now.After(r.Expiry)
}

// Locked reports whether the row has taken its allowance of wrong codes.
func (r PasswordReset) Locked(maxFailures int) bool {
	return r.Failures >= maxFailures
}

type ResetRequestResult struct {
	Sent      bool      `json:"sent"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	DebugCode string    `json:"debug_code,omitempty"`
}
