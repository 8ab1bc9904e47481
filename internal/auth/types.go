package auth

import (
	"strings"
	"time"
)

// User is the identity attached to a session. It never carries a credential.
type User struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
	IsAdmin    bool   `json:"is_admin"`
	IsVerified bool   `json:"is_verified"`
}

// Provider identifies how an account signs in.
type Provider string

const (
	ProviderPassword Provider = "password"
	ProviderGoogle   Provider = "google"
)

// Account is a directory entry.
type Account struct {
	User         User      `json:"user"`
	PasswordHash string    `json:"password_hash,omitempty"` // bcrypt; empty for federated accounts
	Provider     Provider  `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail is the directory key for an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
