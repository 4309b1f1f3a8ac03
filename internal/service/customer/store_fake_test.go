package customer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"leadcrm-service/internal/domain/changelog"
	"leadcrm-service/internal/domain/customer"
	xerrors "leadcrm-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// memStore is an in-memory Store with the same contract as the postgres
// implementation: writes apply immediately, a uniqueness violation on
// (queue, uid) surfaces as ErrDuplicateEntry, and Rollback undoes every
// write of an uncommitted transaction.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	records      map[int64]*customer.Record
	changes      []changelog.Entry
	reminderLogs map[int64]int
	variantSeq   map[string]int

	failChangeLog bool
	beforeInsert  func()
}

func newMemStore() *memStore {
	return &memStore{
		records:      map[int64]*customer.Record{},
		reminderLogs: map[int64]int{},
		variantSeq:   map[string]int{},
	}
}

func (m *memStore) BeginTx(ctx context.Context) (Tx, error) {
	return &memTx{s: m}, nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*customer.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *memStore) List(ctx context.Context, filters *customer.ListFilters) ([]customer.Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []customer.Record
	for _, rec := range m.records {
		if filters.Queue != "" && rec.Queue != filters.Queue {
			continue
		}
		if filters.Team != "" && (!rec.Team.Valid || rec.Team.String != filters.Team) {
			continue
		}
		out = append(out, *rec)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) Stats(ctx context.Context, queue string) (*customer.CustomerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &customer.CustomerStats{}
	for _, rec := range m.records {
		if queue != "" && rec.Queue != queue {
			continue
		}
		stats.TotalCustomers++
		if rec.Disposition == customer.DispositionConverted {
			stats.Converted++
		}
	}
	return stats, nil
}

func (m *memStore) ListChangeLog(ctx context.Context, customerID int64) ([]changelog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []changelog.Entry
	for _, e := range m.changes {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) getLocked(id int64) (*customer.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// seed inserts a record directly, bypassing the orchestrator.
func (m *memStore) seed(rec customer.Record) *customer.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records[rec.ID] = &rec
	cp := rec
	return &cp
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memTx struct {
	s    *memStore
	undo []func()
	done bool
}

func (t *memTx) ListUIDs(ctx context.Context, queue, team string) ([]string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []string
	for _, rec := range t.s.records {
		if rec.Queue != queue {
			continue
		}
		if team != "" && (!rec.Team.Valid || rec.Team.String != team) {
			continue
		}
		out = append(out, rec.UID)
	}
	return out, nil
}

// NextVariantSuffix mirrors the postgres counter: it is seeded from the live
// variants once, then only ever grows, so a deleted record never frees its
// suffix. The reservation participates in the undo log like any other write.
func (t *memTx) NextVariantSuffix(ctx context.Context, queue, base string) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	key := queue + "|" + base
	prev, seeded := t.s.variantSeq[key]
	if !seeded {
		prefix := base + "__"
		for _, rec := range t.s.records {
			if rec.Queue != queue || !strings.HasPrefix(rec.UID, prefix) {
				continue
			}
			if k, err := strconv.Atoi(rec.UID[len(prefix):]); err == nil && k > prev {
				prev = k
			}
		}
	}
	next := prev + 1
	t.s.variantSeq[key] = next
	t.undo = append(t.undo, func() {
		if seeded {
			t.s.variantSeq[key] = prev
		} else {
			delete(t.s.variantSeq, key)
		}
	})
	return next, nil
}

func (t *memTx) FindMatches(ctx context.Context, q customer.MatchQuery) ([]customer.Record, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []customer.Record
	for _, rec := range t.s.records {
		if rec.Queue != q.Queue || rec.ID == q.ExcludeID {
			continue
		}
		hit := false
		for _, f := range []customer.Field{
			customer.FieldPhone, customer.FieldAltPhone, customer.FieldWhatsApp, customer.FieldEmail,
		} {
			v := q.Fields[f]
			if v == "" {
				continue
			}
			if stored := rec.FieldValue(f); stored != "" && stored == v {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		if q.RequireName {
			name, ok := q.Fields[customer.FieldFirstName]
			if !ok || rec.FieldValue(customer.FieldFirstName) != name {
				continue
			}
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (t *memTx) GetByID(ctx context.Context, id int64) (*customer.Record, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.getLocked(id)
}

func (t *memTx) Insert(ctx context.Context, rec *customer.Record) error {
	if t.s.beforeInsert != nil {
		hook := t.s.beforeInsert
		t.s.beforeInsert = nil
		hook()
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.records {
		if existing.Queue == rec.Queue && existing.UID == rec.UID {
			return xerrors.ErrDuplicateEntry
		}
	}
	t.s.nextID++
	rec.ID = t.s.nextID
	cp := *rec
	t.s.records[cp.ID] = &cp

	id := cp.ID
	t.undo = append(t.undo, func() { delete(t.s.records, id) })
	return nil
}

func (t *memTx) Update(ctx context.Context, rec *customer.Record) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	old, ok := t.s.records[rec.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	cp := *rec
	t.s.records[cp.ID] = &cp

	prev := *old
	t.undo = append(t.undo, func() { t.s.records[prev.ID] = &prev })
	return nil
}

func (t *memTx) DeleteChangeLogs(ctx context.Context, customerID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	kept := t.s.changes[:0:0]
	removed := []changelog.Entry{}
	for _, e := range t.s.changes {
		if e.CustomerID == customerID {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	t.s.changes = kept
	t.undo = append(t.undo, func() { t.s.changes = append(t.s.changes, removed...) })
	return nil
}

func (t *memTx) DeleteReminderLogs(ctx context.Context, customerID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev := t.s.reminderLogs[customerID]
	delete(t.s.reminderLogs, customerID)
	t.undo = append(t.undo, func() { t.s.reminderLogs[customerID] = prev })
	return nil
}

func (t *memTx) DeleteCustomer(ctx context.Context, id int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	rec, ok := t.s.records[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	prev := *rec
	delete(t.s.records, id)
	t.undo = append(t.undo, func() { t.s.records[prev.ID] = &prev })
	return nil
}

func (t *memTx) AppendChangeLog(ctx context.Context, entries []changelog.Entry) error {
	if t.s.failChangeLog {
		return errors.New("changelog write refused")
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := len(entries)
	t.s.changes = append(t.s.changes, entries...)
	t.undo = append(t.undo, func() { t.s.changes = t.s.changes[:len(t.s.changes)-n] })
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	t.done = true
	t.undo = nil
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	return nil
}

// memPlanStore parks plans in a map and ignores TTLs.
type memPlanStore struct {
	mu    sync.Mutex
	plans map[string]*UploadPlan
}

func newMemPlanStore() *memPlanStore {
	return &memPlanStore{plans: map[string]*UploadPlan{}}
}

func (m *memPlanStore) Put(ctx context.Context, plan *UploadPlan, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.plans[plan.ID] = &cp
	return nil
}

func (m *memPlanStore) Get(ctx context.Context, planID string) (*UploadPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *plan
	return &cp, nil
}

func (m *memPlanStore) Delete(ctx context.Context, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, planID)
	return nil
}

// memRefs answers reference checks from fixed sets.
type memRefs struct {
	teams  map[string]bool
	agents map[string]bool
}

func (r *memRefs) TeamExists(ctx context.Context, name string) (bool, error) {
	return r.teams[name], nil
}

func (r *memRefs) AgentExists(ctx context.Context, name string) (bool, error) {
	return r.agents[name], nil
}

// memNotifier records delivered events.
type memNotifier struct {
	mu     sync.Mutex
	events []customer.NewCustomerEvent
}

func (n *memNotifier) NotifyNewCustomer(event customer.NewCustomerEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func newTestService(store *memStore) (*Service, *memPlanStore, *memNotifier) {
	plans := newMemPlanStore()
	notifier := &memNotifier{}
	svc := NewService(store, nil, plans, notifier, zap.NewNop())
	return svc, plans, notifier
}
