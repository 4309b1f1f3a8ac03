// internal/repository/postgres/reminder_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadcrm-service/internal/domain/customer"
	"leadcrm-service/internal/domain/reminder"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReminderRepository backs the follow-up reminder sweep.
type ReminderRepository struct {
	db *pgxpool.Pool
}

func NewReminderRepository(db *pgxpool.Pool) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// ListDueFollowUps returns records whose follow-up time has passed and that
// have not been reminded since the given watermark.
func (r *ReminderRepository) ListDueFollowUps(ctx context.Context, asOf, since time.Time, limit int) ([]customer.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM customers c
		WHERE c.follow_up_at IS NOT NULL
		  AND c.follow_up_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM reminder_logs l
			WHERE l.customer_id = c.id AND l.sent_at >= $2
		  )
		ORDER BY c.follow_up_at
		LIMIT $3
	`, prefixedCustomerColumns("c"))

	rows, err := r.db.Query(ctx, query, asOf, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due follow-ups: %w", err)
	}
	defer rows.Close()

	records := []customer.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// RecordSent logs one dispatched reminder.
func (r *ReminderRepository) RecordSent(ctx context.Context, log *reminder.Log) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO reminder_logs (customer_id, channel, destination, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, log.CustomerID, log.Channel, log.Destination, log.SentAt).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}
	return nil
}

func prefixedCustomerColumns(alias string) string {
	cols := []string{
		"id", "queue", "uid", "first_name", "last_name", "phone", "alt_phone",
		"whatsapp", "email", "address", "country", "designation", "disposition",
		"comment", "agent_name", "team", "follow_up_at", "tags", "created_at",
		"updated_at",
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}
