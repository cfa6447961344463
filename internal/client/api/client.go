// Package api is the HTTP client for the task manager auth API. It attaches
// the cached session token to every call and drops the session when the
// server rejects it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-task-manager/internal/client/session"
	"go-task-manager/internal/model"
	"go-task-manager/pkg/apierror"
)

var (
	// ErrNotAuthenticated is returned without contacting the server when a
	// protected endpoint is called and no session is cached.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionRejected means the server answered 401 and the cached
	// session has been cleared.
	ErrSessionRejected = errors.New("session rejected")
)

const (
	pathLogin        = "/api/v1/auth/login"
	pathSignup       = "/api/v1/auth/signup"
	pathRefresh      = "/api/v1/auth/refresh"
	pathMe           = "/api/v1/auth/me"
	pathResetRequest = "/api/v1/auth/password-reset/request"
	pathResetVerify  = "/api/v1/auth/password-reset/verify"
	pathResetConfirm = "/api/v1/auth/password-reset/confirm"
	pathAdminUsers   = "/api/v1/admin/users"
)

var publicPaths = map[string]bool{
	pathLogin:        true,
	pathSignup:       true,
	pathResetRequest: true,
	pathResetVerify:  true,
	pathResetConfirm: true,
}

type sessionStore interface {
	Current(ctx context.Context) (session.Session, error)
	Save(ctx context.Context, s session.Session, remember bool) error
	Clear(ctx context.Context) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   sessionStore
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(baseURL string, sessions sessionStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sessions:   sessions,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login signs in and caches the session, persistently when remember is set.
func (c *Client) Login(ctx context.Context, req model.LoginRequest, remember bool) (session.Session, error) {
	var result model.LoginResult
	if err := c.do(ctx, http.MethodPost, pathLogin, req, &result); err != nil {
		return session.Session{}, fmt.Errorf("login: %w", err)
	}

	sess := session.FromLogin(result, c.now())
	if err := c.sessions.Save(ctx, sess, remember); err != nil {
		return session.Session{}, err
	}
	sess.Remember = remember
	return sess, nil
}

func (c *Client) Signup(ctx context.Context, req model.SignupRequest) (model.AuthUser, error) {
	var user model.AuthUser
	if err := c.do(ctx, http.MethodPost, pathSignup, req, &user); err != nil {
		return model.AuthUser{}, fmt.Errorf("signup: %w", err)
	}
	return user, nil
}

// Refresh swaps the cached token for a fresh one in the same cache.
func (c *Client) Refresh(ctx context.Context) (session.Session, error) {
	current, err := c.sessions.Current(ctx)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		return session.Session{}, err
	}

	var result model.TokenResult
	if err := c.do(ctx, http.MethodPost, pathRefresh, nil, &result); err != nil {
		return session.Session{}, fmt.Errorf("refresh: %w", err)
	}

	sess := session.FromRefresh(result, c.now())
	if err := c.sessions.Save(ctx, sess, current.Remember); err != nil {
		return session.Session{}, err
	}
	sess.Remember = current.Remember
	return sess, nil
}

func (c *Client) Me(ctx context.Context) (model.AuthUser, error) {
	var user model.AuthUser
	if err := c.do(ctx, http.MethodGet, pathMe, nil, &user); err != nil {
		return model.AuthUser{}, fmt.Errorf("me: %w", err)
	}
	return user, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]model.AuthUser, error) {
	var list model.AuthUserList
	if err := c.do(ctx, http.MethodGet, pathAdminUsers, nil, &list); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return list.Users, nil
}

// Logout only forgets the local session; tokens are stateless.
func (c *Client) Logout(ctx context.Context) error {
	return c.sessions.Clear(ctx)
}

func (c *Client) RequestReset(ctx context.Context, email string) (model.ResetRequestResult, error) {
	var result model.ResetRequestResult
	if err := c.do(ctx, http.MethodPost, pathResetRequest, model.ResetRequest{Email: email}, &result); err != nil {
		return model.ResetRequestResult{}, fmt.Errorf("request reset: %w", err)
	}
	return result, nil
}

func (c *Client) VerifyReset(ctx context.Context, email string, code string) error {
	if err := c.do(ctx, http.MethodPost, pathResetVerify, model.ResetVerifyRequest{Email: email, Code: code}, nil); err != nil {
		return fmt.Errorf("verify reset: %w", err)
	}
	return nil
}

func (c *Client) ConfirmReset(ctx context.Context, req model.ResetConsumeRequest) error {
	if err := c.do(ctx, http.MethodPost, pathResetConfirm, req, nil); err != nil {
		return fmt.Errorf("confirm reset: %w", err)
	}
	return nil
}

type envelope = model.Envelope[json.RawMessage]

func (c *Client) do(ctx context.Context, method string, path string, body any, result any) error {
	var token string
	sess, err := c.sessions.Current(ctx)
	switch {
	case err == nil:
		token = sess.Token
	case !errors.Is(err, session.ErrNoSession):
		return err
	case !publicPaths[path]:
		return ErrNotAuthenticated
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Login carries its own credentials; a cached token must not stand in for them.
	if token != "" && path != pathLogin {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.sessions.Clear(ctx); err != nil {
			return fmt.Errorf("clear rejected session: %w", err)
		}
		return fmt.Errorf("%w: %w", ErrSessionRejected, responseError(resp.StatusCode, raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp.StatusCode, raw)
	}

	if result == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func responseError(status int, raw []byte) *apierror.APIError {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		return apierror.New(env.Error.Code, env.Error.Message, env.Error.Details, status)
	}
	return apierror.New("HTTP_ERROR", http.StatusText(status), "", status)
}
