package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-task-manager/internal/mailer"
	"go-task-manager/internal/model"
	"go-task-manager/internal/repository"
)

// memoryStore stands in for Postgres. Consume holds the lock for the whole
// callback the way SELECT ... FOR UPDATE serializes competing transactions.
type memoryStore struct {
	mu     sync.Mutex
	users  map[int64]model.User
	resets []model.PasswordReset
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[int64]model.User{}}
}

func (s *memoryStore) addUser(username, email, password string, role model.Role) model.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u, err := s.Create(context.Background(), model.User{Username: username, Email: email, PasswordHash: string(hash), Role: role})
	if err != nil {
		panic(err)
	}
	return u
}

func (s *memoryStore) FindByID(_ context.Context, id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByEmailLocked(email)
}

func (s *memoryStore) findByEmailLocked(email string) (model.User, error) {
	for _, id := range s.sortedIDsLocked() {
		if u := s.users[id]; strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

// FindByLogin mirrors the repository precedence: email, then username, then
// phone, lowest id first within a tier.
func (s *memoryStore) FindByLogin(_ context.Context, identifier string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matchers := []func(model.User) bool{
		func(u model.User) bool { return strings.EqualFold(u.Email, identifier) },
		func(u model.User) bool { return strings.EqualFold(u.Username, identifier) },
		func(u model.User) bool { return u.Phone != "" && u.Phone == identifier },
	}
	for _, matches := range matchers {
		for _, id := range s.sortedIDsLocked() {
			if u := s.users[id]; matches(u) {
				return u, nil
			}
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memoryStore) sortedIDsLocked() []int64 {
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// addUserUnchecked stores a row the way a direct database write would,
// without signup validation.
func (s *memoryStore) addUserUnchecked(u model.User, password string) model.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	u.ID = s.nextID
	u.PasswordHash = string(hash)
	s.users[u.ID] = u
	return u
}

func (s *memoryStore) Create(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		switch {
		case strings.EqualFold(existing.Username, u.Username):
			return model.User{}, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, "username")
		case strings.EqualFold(existing.Email, u.Email):
			return model.User{}, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, "email")
		case u.Phone != "" && existing.Phone == u.Phone:
			return model.User{}, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, "phone")
		}
	}

	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.users[u.ID] = u
	return u, nil
}

func (s *memoryStore) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.LastLogin = &at
	s.users[id] = u
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *memoryStore) insertReset(reset model.PasswordReset) (model.PasswordReset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	reset.ID = s.nextID
	s.resets = append(s.resets, reset)
	return reset, nil
}

func (s *memoryStore) latestLocked(email string) (int, bool) {
	idx := -1
	for i, r := range s.resets {
		if r.Email != email {
			continue
		}
		if idx < 0 || r.CreatedAt.After(s.resets[idx].CreatedAt) ||
			(r.CreatedAt.Equal(s.resets[idx].CreatedAt) && r.ID > s.resets[idx].ID) {
			idx = i
		}
	}
	return idx, idx >= 0
}

func (s *memoryStore) passwordHash(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, _ := s.findByEmailLocked(email)
	return u.PasswordHash
}

func (s *memoryStore) resetRows(email string) []model.PasswordReset {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []model.PasswordReset
	for _, r := range s.resets {
		if r.Email == email {
			rows = append(rows, r)
		}
	}
	return rows
}

// resetView adapts memoryStore to the reset store contract.
type resetView struct {
	*memoryStore
}

func (v resetView) Create(_ context.Context, reset model.PasswordReset) (model.PasswordReset, error) {
	return v.insertReset(reset)
}

func (v resetView) Latest(_ context.Context, email string) (model.PasswordReset, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx, ok := v.latestLocked(email)
	if !ok {
		return model.PasswordReset{}, model.ErrResetNotFound
	}
	return v.resets[idx], nil
}

func (v resetView) RecordFailure(_ context.Context, resetID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.resets {
		if v.resets[i].ID == resetID {
			v.resets[i].Failures++
			return nil
		}
	}
	return model.ErrResetNotFound
}

func (v resetView) Consume(_ context.Context, email string, apply repository.ConsumeFunc) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx, ok := v.latestLocked(email)
	if !ok {
		return model.ErrResetNotFound
	}
	user, err := v.findByEmailLocked(email)
	if err != nil {
		return err
	}

	hash, err := apply(v.resets[idx], user)
	if err != nil {
		return err
	}
	if v.resets[idx].Used {
		return model.ErrResetCodeUsed
	}

	user.PasswordHash = hash
	v.users[user.ID] = user
	v.resets[idx].Used = true
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) last() mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sent) == 0 {
		return mailer.Message{}
	}
	return s.sent[len(s.sent)-1]
}

type recordingResetObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingResetObserver) ObserveReset(step string, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, step+":"+outcome)
}
