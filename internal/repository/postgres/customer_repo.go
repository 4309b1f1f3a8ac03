// internal/repository/postgres/customer_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"leadcrm-service/internal/domain/changelog"
	"leadcrm-service/internal/domain/customer"
	xerrors "leadcrm-service/internal/pkg/errors"
	customersvc "leadcrm-service/internal/service/customer"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const customerColumns = `
	id, queue, uid, first_name, last_name, phone, alt_phone, whatsapp, email,
	address, country, designation, disposition, comment, agent_name, team,
	follow_up_at, tags, created_at, updated_at`

// CustomerRepository is the postgres store handle for customer records.
// The customers table carries a uniqueness constraint on (queue, uid);
// violations surface as xerrors.ErrDuplicateEntry.
type CustomerRepository struct {
	db *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) BeginTx(ctx context.Context) (customersvc.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &customerTx{tx: tx}, nil
}

// GetByID retrieves a record by primary key.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1`, customerColumns)
	return scanRecord(r.db.QueryRow(ctx, query, id))
}

// List retrieves records with filters and pagination.
func (r *CustomerRepository) List(ctx context.Context, filters *customer.ListFilters) ([]customer.Record, int64, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argPos := 1

	if filters.Queue != "" {
		conditions = append(conditions, fmt.Sprintf("queue = $%d", argPos))
		args = append(args, filters.Queue)
		argPos++
	}
	if filters.Team != "" {
		conditions = append(conditions, fmt.Sprintf("team = $%d", argPos))
		args = append(args, filters.Team)
		argPos++
	}
	if filters.Disposition != "" {
		conditions = append(conditions, fmt.Sprintf("disposition = $%d", argPos))
		args = append(args, filters.Disposition)
		argPos++
	}
	if filters.AgentName != "" {
		conditions = append(conditions, fmt.Sprintf("agent_name = $%d", argPos))
		args = append(args, filters.AgentName)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d OR uid ILIKE $%d)",
			argPos, argPos, argPos, argPos, argPos,
		))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if len(filters.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags && $%d", argPos))
		args = append(args, pq.Array(filters.Tags))
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customers WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "uid", "first_name", "queue", "follow_up_at", "updated_at":
		sortBy = filters.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	offset := (filters.Page - 1) * filters.PageSize
	query := fmt.Sprintf(`
		SELECT %s FROM customers
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, customerColumns, whereClause, sortBy, sortOrder, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	records := []customer.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	return records, total, nil
}

// Stats retrieves record statistics, optionally scoped to a queue.
func (r *CustomerRepository) Stats(ctx context.Context, queue string) (*customer.CustomerStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN follow_up_at IS NOT NULL AND follow_up_at <= NOW() THEN 1 END) AS due,
			COUNT(CASE WHEN created_at >= date_trunc('month', NOW()) THEN 1 END) AS new_this_month,
			COUNT(CASE WHEN disposition = 'converted' THEN 1 END) AS converted
		FROM customers
		WHERE ($1 = '' OR queue = $1)
	`
	var stats customer.CustomerStats
	err := r.db.QueryRow(ctx, query, queue).Scan(
		&stats.TotalCustomers,
		&stats.DueFollowUps,
		&stats.NewThisMonth,
		&stats.Converted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// ListChangeLog retrieves the audit trail of one record, oldest first.
func (r *CustomerRepository) ListChangeLog(ctx context.Context, customerID int64) ([]changelog.Entry, error) {
	query := `
		SELECT id, customer_id, batch_id, field, old_value, new_value, actor, created_at
		FROM customer_change_logs
		WHERE customer_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log: %w", err)
	}
	defer rows.Close()

	entries := []changelog.Entry{}
	for rows.Next() {
		var e changelog.Entry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.BatchID, &e.Field, &e.OldValue, &e.NewValue, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ========== transaction ==========

type customerTx struct {
	tx pgx.Tx
}

func (t *customerTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *customerTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *customerTx) ListUIDs(ctx context.Context, queue, team string) ([]string, error) {
	query := `SELECT uid FROM customers WHERE queue = $1`
	args := []interface{}{queue}
	if team != "" {
		query += ` AND team = $2`
		args = append(args, team)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list uids: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan uid: %w", err)
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func (t *customerTx) NextVariantSuffix(ctx context.Context, queue, base string) (int, error) {
	// Underscores are LIKE wildcards; escape them so only "base__k" forms
	// seed the counter.
	pattern := strings.ReplaceAll(base, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, "_", `\_`)
	pattern = strings.ReplaceAll(pattern, "%", `\%`)
	pattern += `\_\_%`

	// The counter row is the authority once it exists: it only ever grows,
	// so a suffix is never reissued after the record holding it is deleted.
	// The seed subquery folds in any variants that predate the counter.
	query := `
		INSERT INTO variant_sequences (queue, base_uid, last_suffix)
		VALUES ($1, $2, (
			SELECT COALESCE(MAX(CAST(SUBSTRING(uid FROM CHAR_LENGTH($2) + 3) AS INTEGER)), 0) + 1
			FROM customers
			WHERE queue = $1
			  AND uid LIKE $3
			  AND SUBSTRING(uid FROM CHAR_LENGTH($2) + 3) ~ '^[0-9]+$'
		))
		ON CONFLICT (queue, base_uid)
		DO UPDATE SET last_suffix = variant_sequences.last_suffix + 1
		RETURNING last_suffix
	`
	var suffix int
	if err := t.tx.QueryRow(ctx, query, queue, base, pattern).Scan(&suffix); err != nil {
		return 0, fmt.Errorf("failed to reserve variant suffix: %w", err)
	}
	return suffix, nil
}

func (t *customerTx) FindMatches(ctx context.Context, q customer.MatchQuery) ([]customer.Record, error) {
	args := []interface{}{q.Queue}
	argPos := 2

	var contact []string
	for _, f := range []customer.Field{
		customer.FieldPhone, customer.FieldAltPhone, customer.FieldWhatsApp, customer.FieldEmail,
	} {
		v, ok := q.Fields[f]
		if !ok || v == "" {
			continue
		}
		contact = append(contact, fmt.Sprintf("(%s = $%d AND %s <> '')", f, argPos, f))
		args = append(args, v)
		argPos++
	}
	if len(contact) == 0 {
		// The first name alone never drives a match.
		return nil, nil
	}

	var where string
	if q.RequireName {
		name := q.Fields[customer.FieldFirstName]
		if name == "" {
			return nil, nil
		}
		where = fmt.Sprintf(
			"queue = $1 AND (%s) AND first_name = $%d AND first_name <> ''",
			strings.Join(contact, " OR "), argPos,
		)
		args = append(args, name)
		argPos++
	} else {
		where = fmt.Sprintf("queue = $1 AND (%s)", strings.Join(contact, " OR "))
	}

	if q.ExcludeID != 0 {
		where += fmt.Sprintf(" AND id <> $%d", argPos)
		args = append(args, q.ExcludeID)
	}

	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY id`, customerColumns, where)
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find matches: %w", err)
	}
	defer rows.Close()

	var records []customer.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (t *customerTx) GetByID(ctx context.Context, id int64) (*customer.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1`, customerColumns)
	return scanRecord(t.tx.QueryRow(ctx, query, id))
}

func (t *customerTx) Insert(ctx context.Context, rec *customer.Record) error {
	query := `
		INSERT INTO customers (
			queue, uid, first_name, last_name, phone, alt_phone, whatsapp, email,
			address, country, designation, disposition, comment, agent_name, team,
			follow_up_at, tags, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		RETURNING id
	`
	err := t.tx.QueryRow(ctx, query,
		rec.Queue, rec.UID, rec.FirstName, rec.LastName, rec.Phone, rec.AltPhone,
		rec.WhatsApp, rec.Email, rec.Address, rec.Country, rec.Designation,
		string(rec.Disposition), rec.Comment, rec.AgentName, rec.Team,
		rec.FollowUpAt, rec.Tags, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (t *customerTx) Update(ctx context.Context, rec *customer.Record) error {
	query := `
		UPDATE customers SET
			first_name = $1, last_name = $2, phone = $3, alt_phone = $4,
			whatsapp = $5, email = $6, address = $7, country = $8,
			designation = $9, disposition = $10, comment = $11, agent_name = $12,
			team = $13, follow_up_at = $14, tags = $15, updated_at = $16
		WHERE id = $17
	`
	result, err := t.tx.Exec(ctx, query,
		rec.FirstName, rec.LastName, rec.Phone, rec.AltPhone, rec.WhatsApp,
		rec.Email, rec.Address, rec.Country, rec.Designation,
		string(rec.Disposition), rec.Comment, rec.AgentName, rec.Team,
		rec.FollowUpAt, rec.Tags, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (t *customerTx) DeleteChangeLogs(ctx context.Context, customerID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM customer_change_logs WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete change logs: %w", err)
	}
	return nil
}

func (t *customerTx) DeleteReminderLogs(ctx context.Context, customerID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM reminder_logs WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder logs: %w", err)
	}
	return nil
}

func (t *customerTx) DeleteCustomer(ctx context.Context, id int64) error {
	result, err := t.tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (t *customerTx) AppendChangeLog(ctx context.Context, entries []changelog.Entry) error {
	for i := range entries {
		e := &entries[i]
		err := t.tx.QueryRow(ctx, `
			INSERT INTO customer_change_logs (customer_id, batch_id, field, old_value, new_value, actor, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, e.CustomerID, e.BatchID, e.Field, e.OldValue, e.NewValue, e.Actor, e.CreatedAt).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("failed to append change log: %w", err)
		}
	}
	return nil
}

// ========== scanning ==========

func scanRecord(row pgx.Row) (*customer.Record, error) {
	var rec customer.Record
	var disposition string

	err := row.Scan(
		&rec.ID, &rec.Queue, &rec.UID, &rec.FirstName, &rec.LastName,
		&rec.Phone, &rec.AltPhone, &rec.WhatsApp, &rec.Email,
		&rec.Address, &rec.Country, &rec.Designation, &disposition,
		&rec.Comment, &rec.AgentName, &rec.Team, &rec.FollowUpAt,
		&rec.Tags, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}

	rec.Disposition = customer.Disposition(disposition)
	return &rec, nil
}
