// Package auth implements the username/password auth service: signup,
// login, session check, and profile updates over a relational users table.
package auth

import (
	"time"
)

// User is the persisted account record.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash   string     `gorm:"not null" json:"-"`
	DisplayName    string     `json:"display_name"`
	IntroCompleted bool       `gorm:"default:false" json:"intro_completed"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt    *time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Validation bounds for credentials.
const (
	MinUsernameLen = 2
	MinPasswordLen = 4
)

// Error codes surfaced to clients alongside the HTTP status.
const (
	CodeUsernameExists = "USERNAME_EXISTS"
)
