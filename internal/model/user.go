package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Identity is the verified subject carried by a session token.
type Identity struct {
	SubjectID   int64  `json:"id"`
	DisplayName string `json:"username"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

func (u User) Identity() Identity {
	return Identity{
		SubjectID:   u.ID,
		DisplayName: u.Username,
		Email:       u.Email,
		Role:        u.Role,
	}
}

type AuthUser struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Role      Role       `json:"role"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (u User) Public() AuthUser {
	return AuthUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

type AuthUserList struct {
	Users []AuthUser `json:"users"`
}

type LoginResult struct {
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
	ExpiresIn int64    `json:"expires_in"`
	User      AuthUser `json:"user"`
}

type TokenResult struct {
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
	ExpiresIn int64    `json:"expires_in"`
	User      Identity `json:"user"`
}
