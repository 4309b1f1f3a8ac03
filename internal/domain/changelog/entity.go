// internal/domain/changelog/entity.go
package changelog

import "time"

// Entry records one field mutation on a customer record. Entries from the
// same logical operation share a BatchID.
type Entry struct {
	ID         int64     `json:"id" db:"id"`
	CustomerID int64     `json:"customer_id" db:"customer_id"`
	BatchID    string    `json:"batch_id" db:"batch_id"`
	Field      string    `json:"field" db:"field"`
	OldValue   string    `json:"old_value" db:"old_value"`
	NewValue   string    `json:"new_value" db:"new_value"`
	Actor      string    `json:"actor" db:"actor"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
