package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can buy tickets and hold theatre-scoped roles.
type User struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	Username     string
	PasswordHash *string
	IsSuperUser  bool
	IsActivated  bool
	IsDeleted    bool
	CreatedAt    time.Time
}

// HasPassword reports whether the user can log in with a password.
// Externally provisioned accounts have no hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
