package model

import "time"

// UserID is the verified identifier attached to authenticated requests
type UserID string

// User represents an identified player account
type User struct {
	ID          UserID
	DisplayName string
	IsGuest     bool
	CreatedAt   time.Time
}

// RegisteredUser holds credentials for a non-guest account
type RegisteredUser struct {
	UserID       UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
