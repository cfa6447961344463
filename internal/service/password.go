package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	signupPasswordMinLength = 8
	resetPasswordMinLength  = 11

	usernameMinLength = 3
	usernameMaxLength = 50
)

// specialCharacters is the set both password policies accept as "special".
const specialCharacters = `!@#$%^&*(),.?":{}|<>`

var phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)

type passwordClasses struct {
	upper, lower, letter, digit, special bool
}

func classify(password string) passwordClasses {
	var c passwordClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper, c.letter = true, true
		case unicode.IsLower(r):
			c.lower, c.letter = true, true
		case unicode.IsLetter(r):
			c.letter = true
		case unicode.IsDigit(r):
			c.digit = true
		case strings.ContainsRune(specialCharacters, r):
			c.special = true
		}
	}
	return c
}

// validSignupPassword: at least 8 characters with upper, lower, digit and special.
func validSignupPassword(password string) bool {
	if utf8.RuneCountInString(password) < signupPasswordMinLength {
		return false
	}
	c := classify(password)
	return c.upper && c.lower && c.digit && c.special
}

// validResetPassword: at least 11 characters with a letter, a digit and a special.
func validResetPassword(password string) bool {
	if utf8.RuneCountInString(password) < resetPasswordMinLength {
		return false
	}
	c := classify(password)
	return c.letter && c.digit && c.special
}

// validUsername keeps usernames disjoint from the other login identifiers:
// no "@" and nothing that passes as a phone number.
func validUsername(username string) bool {
	n := utf8.RuneCountInString(username)
	if n < usernameMinLength || n > usernameMaxLength {
		return false
	}
	return !strings.Contains(username, "@") && !validPhone(username)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
