package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-task-manager/internal/mailer"
	"go-task-manager/internal/model"
	"go-task-manager/internal/repository"
)

const (
	DefaultResetCodeTTL = 10 * time.Minute
	// DefaultMaxCodeFailures is how many wrong codes retire a reset row.
	DefaultMaxCodeFailures = 5

	resetCodeDigits = 6
)

var resetCodeSpace = big.NewInt(1_000_000)

type resetStore interface {
	Create(ctx context.Context, reset model.PasswordReset) (model.PasswordReset, error)
	Latest(ctx context.Context, email string) (model.PasswordReset, error)
	RecordFailure(ctx context.Context, resetID int64) error
	Consume(ctx context.Context, email string, apply repository.ConsumeFunc) error
}

type emailLookup interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

type resetObserver interface {
	ObserveReset(step string, outcome string)
}

type ResetOption func(*ResetService)

func WithResetClock(now func() time.Time) ResetOption {
	return func(s *ResetService) { s.now = now }
}

func WithResetCodeTTL(ttl time.Duration) ResetOption {
	return func(s *ResetService) { s.codeTTL = ttl }
}

// WithCodeSource replaces the CSPRNG codes are drawn from.
func WithCodeSource(r io.Reader) ResetOption {
	return func(s *ResetService) { s.random = r }
}

func WithResetBcryptCost(cost int) ResetOption {
	return func(s *ResetService) { s.bcryptCost = cost }
}

func WithMaxCodeFailures(n int) ResetOption {
	return func(s *ResetService) {
		if n > 0 {
			s.maxFailures = n
		}
	}
}

// ResetService runs the emailed-code password reset:
// requested, code verified, consumed. A code is consumed at most once.
type ResetService struct {
	resets      resetStore
	users       emailLookup
	sender      mailer.Sender
	observer    resetObserver
	now         func() time.Time
	codeTTL     time.Duration
	random      io.Reader
	bcryptCost  int
	maxFailures int
}

func NewResetService(resets resetStore, users emailLookup, sender mailer.Sender, observer resetObserver, opts ...ResetOption) *ResetService {
	s := &ResetService{
		resets:      resets,
		users:       users,
		sender:      sender,
		observer:    observer,
		now:         time.Now,
		codeTTL:     DefaultResetCodeTTL,
		random:      rand.Reader,
		bcryptCost:  bcrypt.DefaultCost,
		maxFailures: DefaultMaxCodeFailures,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResetService) CodeTTL() time.Duration {
	return s.codeTTL
}

// RequestReset stores a fresh code for a registered email and mails it.
// Earlier codes are superseded, not deleted. A failed delivery keeps the
// row and reports ErrMailDelivery.
func (s *ResetService) RequestReset(ctx context.Context, email string) (model.PasswordReset, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.PasswordReset{}, invalidInput("email is required", "email")
	}

	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			s.observe("request", "unknown_email")
			return model.PasswordReset{}, ErrEmailNotFound
		}
		return model.PasswordReset{}, err
	}

	code, err := s.newCode()
	if err != nil {
		return model.PasswordReset{}, err
	}

	now := s.now().UTC()
	reset, err := s.resets.Create(ctx, model.PasswordReset{
		Email:     email,
		Code:      code,
		Expiry:    now.Add(s.codeTTL),
		CreatedAt: now,
	})
	if err != nil {
		return model.PasswordReset{}, err
	}

	if err := s.sender.Send(ctx, mailer.ResetCodeMessage(email, code, s.codeTTL)); err != nil {
		slog.ErrorContext(ctx, "send reset code", "reset_id", reset.ID, "error", err)
		s.observe("request", "mail_failed")
		return model.PasswordReset{}, ErrMailDelivery
	}

	s.observe("request", "issued")
	return reset, nil
}

// VerifyCode reports whether code is the live, unused, unexpired code for
// email. The only write is the failure record for a wrong code; once a row
// has maxFailures of them it rejects every code.
func (s *ResetService) VerifyCode(ctx context.Context, email string, code string) error {
	now := s.now()
	email = normalizeEmail(email)

	reset, err := s.resets.Latest(ctx, email)
	if errors.Is(err, model.ErrResetNotFound) {
		s.observe("verify", "rejected")
		return ErrCodeInvalidOrExpired
	}
	if err != nil {
		return err
	}

	if reset.Locked(s.maxFailures) {
		s.observe("verify", "locked")
		return ErrCodeInvalidOrExpired
	}
	if !codesEqual(reset.Code, code) {
		s.observe("verify", "rejected")
		if err := s.resets.RecordFailure(ctx, reset.ID); err != nil {
			return err
		}
		return ErrCodeInvalidOrExpired
	}
	if reset.Used || reset.Expired(now) {
		s.observe("verify", "rejected")
		return ErrCodeInvalidOrExpired
	}

	s.observe("verify", "accepted")
	return nil
}

// ConsumeReset sets the new password and retires the code in one
// transaction. Checks run in order: failure allowance, code, used, expiry,
// same password, strength.
func (s *ResetService) ConsumeReset(ctx context.Context, req model.ResetConsumeRequest) error {
	now := s.now()
	email := normalizeEmail(req.Email)
	if email == "" || strings.TrimSpace(req.Code) == "" || req.NewPassword == "" {
		return invalidInput("email, code and newPassword are required", "")
	}

	var wrongCodeFor int64
	err := s.resets.Consume(ctx, email, func(reset model.PasswordReset, user model.User) (string, error) {
		switch {
		case !reset.Used && reset.Locked(s.maxFailures):
			return "", ErrCodeLocked
		case !codesEqual(reset.Code, req.Code):
			wrongCodeFor = reset.ID
			return "", ErrCodeInvalid
		case reset.Used:
			return "", ErrCodeUsed
		case reset.Expired(now):
			return "", ErrCodeExpired
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.NewPassword)) == nil {
			return "", ErrSamePassword
		}
		if !validResetPassword(req.NewPassword) {
			return "", ErrResetPassword
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		return string(hash), nil
	})

	// The failure is recorded outside the rolled back transaction.
	if wrongCodeFor != 0 {
		if recordErr := s.resets.RecordFailure(ctx, wrongCodeFor); recordErr != nil {
			return recordErr
		}
	}

	switch {
	case err == nil:
		s.observe("consume", "consumed")
		slog.InfoContext(ctx, "password reset completed")
		return nil
	case errors.Is(err, model.ErrResetNotFound), errors.Is(err, model.ErrUserNotFound):
		s.observe("consume", "rejected")
		return ErrCodeInvalid
	case errors.Is(err, model.ErrResetCodeUsed):
		s.observe("consume", "rejected")
		return ErrCodeUsed
	default:
		s.observe("consume", "rejected")
		return err
	}
}

func (s *ResetService) newCode() (string, error) {
	n, err := rand.Int(s.random, resetCodeSpace)
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}

func codesEqual(stored string, presented string) bool {
	presented = strings.TrimSpace(presented)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func (s *ResetService) observe(step string, outcome string) {
	if s.observer != nil {
		s.observer.ObserveReset(step, outcome)
	}
}
