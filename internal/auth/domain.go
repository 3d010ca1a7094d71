package auth

import "time"

// Credential is an authenticatable account linked to a user row through
// the opaque auth principal id.
type Credential struct {
	AuthUserID   string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
