package model

import "time"

// UserID uniquely identifies a registered user
type UserID string

// User is a registered account that can exchange credentials for tokens
type User struct {
	ID           UserID
	Username     string
	PasswordHash string // bcrypt hash
	Email        string
	Permissions  Permissions
	Enabled      bool
	Verified     bool
	CreatedAt    time.Time
}
