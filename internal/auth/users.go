// Package auth provides staff login, sessions, and request authentication.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized is returned for missing, unknown, or expired session tokens.
	ErrUnauthorized = errors.New("unauthorized")
)

type account struct {
	user models.User
	hash []byte
}

// Directory holds the configured staff accounts.
type Directory struct {
	accounts map[string]account
}

// NewDirectory builds a directory from configured users. Emails are case-insensitive.
func NewDirectory(users []config.UserConfig) (*Directory, error) {
	d := &Directory{accounts: make(map[string]account, len(users))}
	for _, u := range users {
		email := normalizeEmail(u.Email)
		if email == "" {
			return nil, fmt.Errorf("user without email")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("user %s: invalid password hash: %w", email, err)
		}
		role := u.Role
		if role == "" {
			role = models.RoleAgent
		}
		name := u.Name
		if name == "" {
			name = email
		}
		d.accounts[email] = account{
			user: models.User{Email: email, Name: name, Role: role},
			hash: []byte(u.PasswordHash),
		}
	}
	return d, nil
}

// Len returns the number of accounts.
func (d *Directory) Len() int { return len(d.accounts) }

// Authenticate checks email and password and returns the matching user.
func (d *Directory) Authenticate(email, password string) (*models.User, error) {
	acc, ok := d.accounts[normalizeEmail(email)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u := acc.user
	return &u, nil
}

// HashPassword returns a bcrypt hash suitable for the users list in the config file.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
