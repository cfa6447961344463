package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-task-manager/internal/auth"
	"go-task-manager/internal/model"
	"go-task-manager/internal/token"
)

const tokenType = "Bearer"

type userStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByLogin(ctx context.Context, identifier string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context) ([]model.User, error)
}

type tokenCodec interface {
	Issue(identity model.Identity) (string, error)
	Verify(tokenString string) (model.Identity, error)
	Refresh(tokenString string) (string, error)
	TTL() time.Duration
}

type loginObserver interface {
	ObserveLogin(outcome string)
}

type AuthService struct {
	users      userStore
	tokens     tokenCodec
	observer   loginObserver
	bcryptCost int
	now        func() time.Time
	// dummyHash keeps the cost of a miss equal to a wrong password.
	dummyHash []byte
}

func NewAuthService(users userStore, tokens tokenCodec, observer loginObserver, bcryptCost int) (*AuthService, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}

	return &AuthService{
		users:      users,
		tokens:     tokens,
		observer:   observer,
		bcryptCost: bcryptCost,
		now:        time.Now,
		dummyHash:  dummy,
	}, nil
}

// Login checks credentials and issues a session token. A request without
// credentials that presents a valid token gets that token back instead.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, presented string) (model.LoginResult, error) {
	if presented != "" && req.Username == "" && req.Password == "" {
		if result, ok := s.resume(ctx, presented); ok {
			s.observeLogin("resumed")
			return result, nil
		}
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" || req.Password == "" {
		return model.LoginResult{}, invalidInput("username and password are required", "")
	}

	user, err := s.users.FindByLogin(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		s.observeLogin("invalid_credentials")
		return model.LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.observeLogin("invalid_credentials")
		return model.LoginResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return model.LoginResult{}, err
	}
	user.LastLogin = &now

	signed, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.observeLogin("success")
	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)

	return model.LoginResult{
		Token:     signed,
		TokenType: tokenType,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		User:      user.Public(),
	}, nil
}

func (s *AuthService) resume(ctx context.Context, presented string) (model.LoginResult, bool) {
	identity, err := s.tokens.Verify(presented)
	if err != nil {
		return model.LoginResult{}, false
	}

	user, err := s.users.FindByID(ctx, identity.SubjectID)
	if err != nil {
		return model.LoginResult{}, false
	}

	expiresIn := int64(s.tokens.TTL().Seconds())
	if parts, err := token.Decode(presented); err == nil && parts.Claims.ExpiresAt != nil {
		expiresIn = remainingSeconds(parts.Claims.ExpiresAt.Sub(s.now()))
	}

	return model.LoginResult{
		Token:     presented,
		TokenType: tokenType,
		ExpiresIn: expiresIn,
		User:      user.Public(),
	}, true
}

// remainingSeconds rounds up so a live token never reports zero, which
// clients read as no expiry.
func remainingSeconds(d time.Duration) int64 {
	return max(1, int64(math.Ceil(d.Seconds())))
}

// Signup registers a regular user. The role is never taken from the request.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.AuthUser, error) {
	user, err := s.createUser(ctx, req, model.RoleUser)
	if err != nil {
		return model.AuthUser{}, err
	}

	slog.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return user.Public(), nil
}

// CreateAdmin bootstraps an administrator from the command line.
func (s *AuthService) CreateAdmin(ctx context.Context, req model.SignupRequest) (model.AuthUser, error) {
	user, err := s.createUser(ctx, req, model.RoleAdmin)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) createUser(ctx context.Context, req model.SignupRequest, role model.Role) (model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)

	switch {
	case !validUsername(username):
		return model.User{}, invalidInput("username must be 3 to 50 characters and must not be an email or phone number", "username")
	case !validEmail(email):
		return model.User{}, invalidInput("a valid email is required", "email")
	case phone != "" && !validPhone(phone):
		return model.User{}, invalidInput("phone number is not valid", "phone")
	case !validSignupPassword(req.Password):
		return model.User{}, ErrSignupPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.User{
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         role,
	})
	if errors.Is(err, model.ErrUserAlreadyExists) {
		field := "username"
		if _, detail, ok := strings.Cut(err.Error(), ": "); ok {
			field = detail
		}
		return model.User{}, alreadyExists(field)
	}
	if err != nil {
		return model.User{}, err
	}

	return user, nil
}

// Refresh exchanges a still-valid token for a new one with the same identity.
func (s *AuthService) Refresh(_ context.Context, presented string) (model.TokenResult, error) {
	refreshed, err := s.tokens.Refresh(presented)
	if err != nil {
		return model.TokenResult{}, auth.ErrInvalidToken
	}

	identity, err := s.tokens.Verify(refreshed)
	if err != nil {
		return model.TokenResult{}, auth.ErrInvalidToken
	}

	return model.TokenResult{
		Token:     refreshed,
		TokenType: tokenType,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		User:      identity,
	}, nil
}

func (s *AuthService) Me(ctx context.Context, identity model.Identity) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, identity.SubjectID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthUser{}, ErrUserNotFound
	}
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) ListUsers(ctx context.Context) (model.AuthUserList, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return model.AuthUserList{}, err
	}

	list := model.AuthUserList{Users: make([]model.AuthUser, 0, len(users))}
	for _, u := range users {
		list.Users = append(list.Users, u.Public())
	}
	return list, nil
}

func (s *AuthService) observeLogin(outcome string) {
	if s.observer != nil {
		s.observer.ObserveLogin(outcome)
	}
}
