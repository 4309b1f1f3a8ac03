// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

// Role is the closed set of access levels.
type Role string

const (
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// User is an authenticated operator of the system.
type User struct {
	ID           int64          `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	FullName     string         `json:"full_name" db:"full_name"`
	Role         Role           `json:"role" db:"role"`
	TeamName     sql.NullString `json:"team_name,omitempty" db:"team_name"`
	IsActive     bool           `json:"is_active" db:"is_active"`
	LastLoginAt  sql.NullTime   `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
