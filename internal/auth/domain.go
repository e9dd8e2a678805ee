package auth

import "time"

// User represents a school account able to sign in.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	Permissions  []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
