package models

import (
	"time"
)

// Default permission groups
const (
	GroupAdmin = "admin"
	GroupUser  = "user"
)

type User struct {
	ID           string
	Username     string // Unique, case-sensitive lookup key
	Email        string
	PasswordHash string // Empty for proxy-provisioned users; never validates
	Group        string // Permission group, e.g. "user", "admin"
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// HasUsableCredential reports whether the user can log in with a local password
func (u *User) HasUsableCredential() bool {
	return u != nil && u.PasswordHash != ""
}
