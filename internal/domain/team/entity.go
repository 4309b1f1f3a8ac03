// internal/domain/team/entity.go
package team

import (
	"database/sql"
	"time"
)

// Team is a queue grouping under a business center.
type Team struct {
	ID             int64          `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	BusinessCenter sql.NullString `json:"business_center,omitempty" db:"business_center"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Agent is a user who can be assigned customer records.
type Agent struct {
	ID        int64          `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	TeamName  sql.NullString `json:"team_name,omitempty" db:"team_name"`
	Email     sql.NullString `json:"email,omitempty" db:"email"`
	IsActive  bool           `json:"is_active" db:"is_active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
