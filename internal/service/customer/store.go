// internal/service/customer/store.go
package customer

import (
	"context"
	"time"

	"leadcrm-service/internal/domain/changelog"
	"leadcrm-service/internal/domain/customer"
)

// Store is the injected data-store handle. All multi-step writes go through
// a Tx; the postgres implementation maps a uniqueness violation on
// (queue, uid) to xerrors.ErrDuplicateEntry.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	// Plain reads outside any transaction.
	GetByID(ctx context.Context, id int64) (*customer.Record, error)
	List(ctx context.Context, filters *customer.ListFilters) ([]customer.Record, int64, error)
	Stats(ctx context.Context, queue string) (*customer.CustomerStats, error)
	ListChangeLog(ctx context.Context, customerID int64) ([]changelog.Entry, error)
}

// Tx is one transaction against the customer tables. Rollback after Commit
// is a no-op, so callers can always `defer tx.Rollback(ctx)`.
type Tx interface {
	// ListUIDs returns the identifiers stored under a queue. A non-empty
	// team narrows the scope to that secondary grouping.
	ListUIDs(ctx context.Context, queue, team string) ([]string, error)

	// NextVariantSuffix reserves the next "__k" suffix for a lineage base.
	// The reservation is a persistent per-(queue, base) high-water mark: a
	// suffix is never reissued, even after the record holding it is deleted.
	NextVariantSuffix(ctx context.Context, queue, base string) (int, error)

	FindMatches(ctx context.Context, q customer.MatchQuery) ([]customer.Record, error)
	GetByID(ctx context.Context, id int64) (*customer.Record, error)

	Insert(ctx context.Context, rec *customer.Record) error
	Update(ctx context.Context, rec *customer.Record) error

	// Delete-path cleanups. The cascade is the orchestrator's job and must
	// run in this order: change-log rows, reminder rows, then the record.
	DeleteChangeLogs(ctx context.Context, customerID int64) error
	DeleteReminderLogs(ctx context.Context, customerID int64) error
	DeleteCustomer(ctx context.Context, id int64) error

	AppendChangeLog(ctx context.Context, entries []changelog.Entry) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ReferenceStore resolves cross-references named by incoming records.
type ReferenceStore interface {
	TeamExists(ctx context.Context, name string) (bool, error)
	AgentExists(ctx context.Context, name string) (bool, error)
}

// PlanStore parks upload plans between the plan and confirm calls. Entries
// carry a TTL and may expire.
type PlanStore interface {
	Put(ctx context.Context, plan *UploadPlan, ttl time.Duration) error
	Get(ctx context.Context, planID string) (*UploadPlan, error)
	Delete(ctx context.Context, planID string) error
}

// Notifier receives the new-customer payload after a successful create.
// Implementations deliver asynchronously; the core never awaits them.
type Notifier interface {
	NotifyNewCustomer(event customer.NewCustomerEvent)
}
