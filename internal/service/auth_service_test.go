package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-task-manager/internal/model"
	"go-task-manager/internal/token"
)

type recordingLoginObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingLoginObserver) ObserveLogin(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()

	codec, err := token.NewCodec("service-secret", "go-task-manager", token.WithTTL(time.Hour))
	require.NoError(t, err)
	return codec
}

func newTestAuthService(t *testing.T, store *memoryStore) *AuthService {
	t.Helper()

	svc, err := NewAuthService(store, newTestCodec(t), nil, bcrypt.MinCost)
	require.NoError(t, err)
	return svc
}

func validSignup() model.SignupRequest {
	return model.SignupRequest{
		Username: "carol",
		Email:    "Carol@Example.com",
		Phone:    "+1 555-123-4567",
		Password: "Secret#123",
	}
}

func TestSignup(t *testing.T) {
	t.Parallel()

	t.Run("creates a regular user", func(t *testing.T) {
		store := newMemoryStore()
		svc := newTestAuthService(t, store)

		user, err := svc.Signup(t.Context(), validSignup())
		require.NoError(t, err)
		require.Equal(t, "carol", user.Username)
		require.Equal(t, "carol@example.com", user.Email)
		require.Equal(t, model.RoleUser, user.Role)

		stored, err := store.FindByID(t.Context(), user.ID)
		require.NoError(t, err)
		require.NotEqual(t, "Secret#123", stored.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secret#123")))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		svc := newTestAuthService(t, newMemoryStore())

		cases := map[string]struct {
			mutate func(*model.SignupRequest)
			want   error
		}{
			"short username": {func(r *model.SignupRequest) { r.Username = "ab" }, model.ErrInvalidInput},
			"long username":  {func(r *model.SignupRequest) { r.Username = strings.Repeat("x", 51) }, model.ErrInvalidInput},
			"email username": {func(r *model.SignupRequest) { r.Username = "victim@example.com" }, model.ErrInvalidInput},
			"phone username": {func(r *model.SignupRequest) { r.Username = "5551234567" }, model.ErrInvalidInput},
			"bad email":      {func(r *model.SignupRequest) { r.Email = "carol-at-example" }, model.ErrInvalidInput},
			"bad phone":      {func(r *model.SignupRequest) { r.Phone = "12ab" }, model.ErrInvalidInput},
			"too short":      {func(r *model.SignupRequest) { r.Password = "Se#1" }, model.ErrWeakPassword},
			"no uppercase":   {func(r *model.SignupRequest) { r.Password = "secret#123" }, model.ErrWeakPassword},
			"no lowercase":   {func(r *model.SignupRequest) { r.Password = "SECRET#123" }, model.ErrWeakPassword},
			"no digit":       {func(r *model.SignupRequest) { r.Password = "Secret#abc" }, model.ErrWeakPassword},
			"no special":     {func(r *model.SignupRequest) { r.Password = "Secret1234" }, model.ErrWeakPassword},
		}

		for name, tc := range cases {
			req := validSignup()
			tc.mutate(&req)

			_, err := svc.Signup(t.Context(), req)
			require.ErrorIs(t, err, tc.want, name)
		}
	})

	t.Run("duplicates conflict", func(t *testing.T) {
		svc := newTestAuthService(t, newMemoryStore())

		_, err := svc.Signup(t.Context(), validSignup())
		require.NoError(t, err)

		req := validSignup()
		req.Username = "carol2"
		_, err = svc.Signup(t.Context(), req)
		require.ErrorIs(t, err, model.ErrUserAlreadyExists)
		require.Contains(t, err.Error(), "email")
	})

	t.Run("usernames differing only in case conflict", func(t *testing.T) {
		svc := newTestAuthService(t, newMemoryStore())

		_, err := svc.Signup(t.Context(), validSignup())
		require.NoError(t, err)

		req := validSignup()
		req.Username = "CAROL"
		req.Email = "other@example.com"
		req.Phone = ""
		_, err = svc.Signup(t.Context(), req)
		require.ErrorIs(t, err, model.ErrUserAlreadyExists)
		require.Contains(t, err.Error(), "username")
	})

	t.Run("create admin", func(t *testing.T) {
		svc := newTestAuthService(t, newMemoryStore())

		admin, err := svc.CreateAdmin(t.Context(), validSignup())
		require.NoError(t, err)
		require.Equal(t, model.RoleAdmin, admin.Role)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("by username email or phone", func(t *testing.T) {
		store := newMemoryStore()
		svc := newTestAuthService(t, store)
		_, err := svc.Signup(t.Context(), validSignup())
		require.NoError(t, err)

		for _, identifier := range []string{"carol", "carol@example.com", "+1 555-123-4567"} {
			result, err := svc.Login(t.Context(), model.LoginRequest{Username: identifier, Password: "Secret#123"}, "")
			require.NoError(t, err, identifier)
			require.Equal(t, "Bearer", result.TokenType)
			require.Equal(t, int64(3600), result.ExpiresIn)
			require.NotNil(t, result.User.LastLogin)

			identity, err := newTestCodec(t).Verify(result.Token)
			require.NoError(t, err)
			require.Equal(t, "carol", identity.DisplayName)
		}
	})

	t.Run("email owner wins over a username spelled like the email", func(t *testing.T) {
		store := newMemoryStore()
		svc := newTestAuthService(t, store)
		store.addUserUnchecked(model.User{Username: "victim@example.com", Email: "squatter@example.com", Role: model.RoleUser}, "Squat#Pass1")
		store.addUser("victim", "victim@example.com", "Victim#Pass1", model.RoleUser)

		result, err := svc.Login(t.Context(), model.LoginRequest{Username: "Victim@Example.com", Password: "Victim#Pass1"}, "")
		require.NoError(t, err)
		require.Equal(t, "victim", result.User.Username)
	})

	t.Run("bad credentials share one error", func(t *testing.T) {
		store := newMemoryStore()
		observer := &recordingLoginObserver{}
		svc, err := NewAuthService(store, newTestCodec(t), observer, bcrypt.MinCost)
		require.NoError(t, err)
		store.addUser("dave", "dave@example.com", "Right#Pass1", model.RoleUser)

		_, err = svc.Login(t.Context(), model.LoginRequest{Username: "dave", Password: "wrong"}, "")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Login(t.Context(), model.LoginRequest{Username: "nobody", Password: "wrong"}, "")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		require.Equal(t, []string{"invalid_credentials", "invalid_credentials"}, observer.outcomes)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := newTestAuthService(t, newMemoryStore())

		_, err := svc.Login(t.Context(), model.LoginRequest{Username: "  "}, "")
		require.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("valid presented token resumes the session", func(t *testing.T) {
		store := newMemoryStore()
		svc := newTestAuthService(t, store)
		user := store.addUser("erin", "erin@example.com", "Erin#Pass1", model.RoleAdmin)

		presented, err := newTestCodec(t).Issue(user.Identity())
		require.NoError(t, err)

		result, err := svc.Login(t.Context(), model.LoginRequest{}, presented)
		require.NoError(t, err)
		require.Equal(t, presented, result.Token)
		require.Equal(t, model.RoleAdmin, result.User.Role)
		require.Positive(t, result.ExpiresIn)
	})

	t.Run("credentials win over a presented token", func(t *testing.T) {
		store := newMemoryStore()
		svc := newTestAuthService(t, store)
		alice := store.addUser("alice", "alice@example.com", "Alice#Pass1", model.RoleAdmin)
		store.addUser("bob", "bob@example.com", "Bob#Pass12", model.RoleUser)

		aliceToken, err := newTestCodec(t).Issue(alice.Identity())
		require.NoError(t, err)

		result, err := svc.Login(t.Context(), model.LoginRequest{Username: "bob", Password: "Bob#Pass12"}, aliceToken)
		require.NoError(t, err)
		require.Equal(t, "bob", result.User.Username)
		require.Equal(t, model.RoleUser, result.User.Role)
		require.NotEqual(t, aliceToken, result.Token)

		_, err = svc.Login(t.Context(), model.LoginRequest{Username: "bob", Password: "wrong"}, aliceToken)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("resumed session about to expire reports at least one second", func(t *testing.T) {
		store := newMemoryStore()
		svc := newTestAuthService(t, store)
		user := store.addUser("gina", "gina@example.com", "Gina#Pass1", model.RoleUser)

		presented, err := newTestCodec(t).Issue(user.Identity())
		require.NoError(t, err)
		parts, err := token.Decode(presented)
		require.NoError(t, err)

		svc.now = func() time.Time { return parts.Claims.ExpiresAt.Time.Add(-300 * time.Millisecond) }

		result, err := svc.Login(t.Context(), model.LoginRequest{}, presented)
		require.NoError(t, err)
		require.Equal(t, int64(1), result.ExpiresIn)
	})

	t.Run("invalid presented token falls back to credentials", func(t *testing.T) {
		store := newMemoryStore()
		svc := newTestAuthService(t, store)
		store.addUser("erin", "erin@example.com", "Erin#Pass1", model.RoleUser)

		result, err := svc.Login(t.Context(), model.LoginRequest{Username: "erin", Password: "Erin#Pass1"}, "not.a.token")
		require.NoError(t, err)
		require.NotEqual(t, "not.a.token", result.Token)
	})
}

func TestRemainingSeconds(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(1), remainingSeconds(time.Millisecond))
	require.Equal(t, int64(1), remainingSeconds(0))
	require.Equal(t, int64(2), remainingSeconds(1500*time.Millisecond))
	require.Equal(t, int64(3600), remainingSeconds(time.Hour))
}

func TestRefreshAndMe(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	svc := newTestAuthService(t, store)
	user := store.addUser("frank", "frank@example.com", "Frank#Pass1", model.RoleUser)

	signed, err := newTestCodec(t).Issue(user.Identity())
	require.NoError(t, err)

	refreshed, err := svc.Refresh(t.Context(), signed)
	require.NoError(t, err)
	require.Equal(t, user.Identity(), refreshed.User)

	_, err = svc.Refresh(t.Context(), "garbage")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	me, err := svc.Me(t.Context(), refreshed.User)
	require.NoError(t, err)
	require.Equal(t, "frank@example.com", me.Email)

	_, err = svc.Me(t.Context(), model.Identity{SubjectID: 999})
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	svc := newTestAuthService(t, store)
	store.addUser("zed", "zed@example.com", "Zed#Pass12", model.RoleUser)
	store.addUser("amy", "amy@example.com", "Amy#Pass12", model.RoleAdmin)

	list, err := svc.ListUsers(t.Context())
	require.NoError(t, err)
	require.Len(t, list.Users, 2)
	require.Equal(t, "amy", list.Users[0].Username)
}
