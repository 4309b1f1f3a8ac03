// internal/domain/reminder/entity.go
package reminder

import "time"

// Log records one dispatched follow-up reminder.
type Log struct {
	ID          int64     `json:"id" db:"id"`
	CustomerID  int64     `json:"customer_id" db:"customer_id"`
	Channel     string    `json:"channel" db:"channel"` // whatsapp or email
	Destination string    `json:"destination" db:"destination"`
	SentAt      time.Time `json:"sent_at" db:"sent_at"`
}
