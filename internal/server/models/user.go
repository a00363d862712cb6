package models

import "time"

// User is the account record owned by user management. The identity core
// only reads it and flips Verified / replaces PasswordHash.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	RoleID       int64
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
