package customer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"leadcrm-service/internal/domain/customer"
	xerrors "leadcrm-service/internal/pkg/errors"

	"go.uber.org/zap"
)

func createReq(queue, firstName, phone string) *customer.CreateCustomerRequest {
	return &customer.CreateCustomerRequest{
		RecordPayload: customer.RecordPayload{
			Queue:     queue,
			FirstName: firstName,
			Phone:     phone,
		},
	}
}

func TestCreateAssignsSequentialIdentifiers(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	for i, want := range []string{"upload_1", "upload_2", "upload_3"} {
		res, err := svc.CreateCustomer(ctx, createReq("upload", "User", fmt.Sprintf("25471100000%d", i)), "tester")
		if err != nil {
			t.Fatalf("CreateCustomer #%d: %v", i, err)
		}
		if res.Status != StatusCreated {
			t.Fatalf("status = %q, want created", res.Status)
		}
		if res.Record.UID != want {
			t.Fatalf("UID = %q, want %q", res.Record.UID, want)
		}
	}
}

func TestCreateQueuesAreIndependent(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	res, err := svc.CreateCustomer(ctx, createReq("upload", "A", "254711000001"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Record.UID != "upload_1" {
		t.Fatalf("UID = %q", res.Record.UID)
	}

	res, err = svc.CreateCustomer(ctx, createReq("walkin", "B", "254711000002"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Record.UID != "walkin_1" {
		t.Fatalf("UID = %q, want walkin_1", res.Record.UID)
	}
}

func TestCreateSharedFirstNameIsNotADuplicate(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	// Same first name, distinct contact details: a plain insert.
	res, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000002"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Status != StatusCreated {
		t.Fatalf("status = %q, want created", res.Status)
	}
	if res.Record.UID != "upload_2" {
		t.Fatalf("UID = %q, want upload_2", res.Record.UID)
	}
}

func TestCreateDuplicatePromptsWithoutAction(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	res, err := svc.CreateCustomer(ctx, createReq("upload", "Someone", "254711000001"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Status != StatusDuplicatePrompt {
		t.Fatalf("status = %q, want duplicate_prompt", res.Status)
	}
	if res.Duplicate == nil || !res.Duplicate.Matched {
		t.Fatalf("prompt carries no match detail: %+v", res)
	}
	if store.count() != 1 {
		t.Fatalf("prompt must not write, store has %d records", store.count())
	}
}

func TestCreateDuplicateSkip(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	first, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	req := createReq("upload", "Other", "254711000001")
	req.DuplicateAction = "skip"
	res, err := svc.CreateCustomer(ctx, req, "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Status != StatusSkipped {
		t.Fatalf("status = %q, want skipped", res.Status)
	}
	if store.count() != 1 {
		t.Fatalf("skip wrote a record, store has %d", store.count())
	}

	got, _ := store.GetByID(ctx, first.Record.ID)
	if got.FirstName.String != "Alice" {
		t.Fatalf("skip mutated the stored record: %+v", got)
	}
}

func TestCreateDuplicateReplace(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	first, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	req := createReq("upload", "Alicia", "254711000001")
	req.DuplicateAction = "replace"
	res, err := svc.CreateCustomer(ctx, req, "editor")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Status != StatusUpdated {
		t.Fatalf("status = %q, want updated", res.Status)
	}
	if res.Record.ID != first.Record.ID || res.Record.UID != first.Record.UID {
		t.Fatalf("replace changed identity: %+v", res.Record)
	}
	if store.count() != 1 {
		t.Fatalf("replace inserted, store has %d", store.count())
	}

	// The replace is audited.
	entries, err := store.ListChangeLog(ctx, first.Record.ID)
	if err != nil {
		t.Fatalf("ListChangeLog: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("replace produced no change-log entries")
	}
	for _, e := range entries {
		if e.Actor != "editor" {
			t.Fatalf("actor = %q, want editor", e.Actor)
		}
		if e.BatchID != entries[0].BatchID {
			t.Fatal("entries of one replace must share a batch id")
		}
	}
}

func TestCreateDuplicateAppend(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	req := createReq("upload", "Alice", "254711000001")
	req.DuplicateAction = "append"
	res, err := svc.CreateCustomer(ctx, req, "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Status != StatusCreated {
		t.Fatalf("status = %q, want created", res.Status)
	}
	if res.Record.UID != "upload_1__1" {
		t.Fatalf("UID = %q, want upload_1__1", res.Record.UID)
	}

	// A second append extends the same lineage.
	res, err = svc.CreateCustomer(ctx, req, "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Record.UID != "upload_1__2" {
		t.Fatalf("UID = %q, want upload_1__2", res.Record.UID)
	}

	// Variants never consume queue sequence numbers.
	res, err = svc.CreateCustomer(ctx, createReq("upload", "Carol", "254711000009"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Record.UID != "upload_2" {
		t.Fatalf("UID = %q, want upload_2", res.Record.UID)
	}
}

func TestAppendDoesNotRecycleDeletedSuffix(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	req := createReq("upload", "Alice", "254711000001")
	req.DuplicateAction = "append"
	if _, err := svc.CreateCustomer(ctx, req, "tester"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	second, err := svc.CreateCustomer(ctx, req, "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if second.Record.UID != "upload_1__2" {
		t.Fatalf("UID = %q, want upload_1__2", second.Record.UID)
	}

	if err := svc.DeleteCustomer(ctx, second.Record.ID); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}

	// Deleting a variant does not free its suffix; the lineage keeps counting.
	res, err := svc.CreateCustomer(ctx, req, "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Record.UID != "upload_1__3" {
		t.Fatalf("UID = %q, want upload_1__3 (suffix reissued after delete)", res.Record.UID)
	}
}

func TestCreateInvalidAction(t *testing.T) {
	svc, _, _ := newTestService(newMemStore())
	req := createReq("upload", "Alice", "254711000001")
	req.DuplicateAction = "merge"
	_, err := svc.CreateCustomer(context.Background(), req, "tester")
	if !errors.Is(err, xerrors.ErrInvalidAction) {
		t.Fatalf("err = %v, want ErrInvalidAction", err)
	}
}

func TestCreateRetriesLostIdentifierRace(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	// A competitor takes upload_1 between our read and insert; the first
	// attempt hits the constraint and the replay lands on upload_2.
	store.beforeInsert = func() {
		store.seed(customer.Record{
			Queue: "upload", UID: "upload_1",
			FirstName: str("Racer"), Phone: str("254799999999"),
		})
	}

	res, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if res.Record.UID != "upload_2" {
		t.Fatalf("UID = %q, want upload_2 after replay", res.Record.UID)
	}
	if store.count() != 2 {
		t.Fatalf("store has %d records, want 2", store.count())
	}
}

func TestCreateConcurrentUniqueIdentifiers(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	svc.maxAttempts = 50
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateCustomer(ctx,
				createReq("upload", "User", fmt.Sprintf("2547%08d", i)), "tester")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}

	page, _, err := store.List(ctx, &customer.ListFilters{Queue: "upload"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	seen := map[string]bool{}
	for _, rec := range page {
		if seen[rec.UID] {
			t.Fatalf("duplicate identifier %q", rec.UID)
		}
		seen[rec.UID] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique identifiers, want %d", len(seen), n)
	}
}

func TestCreateExhaustsRetries(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	svc.maxAttempts = 3
	ctx := context.Background()

	// Every attempt loses the race: re-arm the hook from inside itself.
	n := 0
	var hook func()
	hook = func() {
		n++
		store.seed(customer.Record{
			Queue: "upload", UID: fmt.Sprintf("upload_%d", n),
			Phone: str(fmt.Sprintf("25479999%04d", n)),
		})
		store.beforeInsert = hook
	}
	store.beforeInsert = hook

	_, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")
	if !errors.Is(err, xerrors.ErrExhaustedRetries) {
		t.Fatalf("err = %v, want ErrExhaustedRetries", err)
	}
}

func TestUpdateWritesChangeLog(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	created, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	newName := "Alicia"
	newComment := "spoke on Friday"
	res, err := svc.UpdateCustomer(ctx, created.Record.ID, &customer.UpdateCustomerRequest{
		FirstName: &newName,
		Comment:   &newComment,
	}, "editor")
	if err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}
	if res.Status != StatusUpdated {
		t.Fatalf("status = %q", res.Status)
	}

	entries, _ := store.ListChangeLog(ctx, created.Record.ID)
	if len(entries) != 2 {
		t.Fatalf("change log has %d entries, want 2 (one per field)", len(entries))
	}
	fields := map[string]bool{}
	for _, e := range entries {
		fields[e.Field] = true
		if e.BatchID != entries[0].BatchID {
			t.Fatal("one mutation must share one batch id")
		}
	}
	if !fields["first_name"] || !fields["comment"] {
		t.Fatalf("logged fields = %v", fields)
	}
}

func TestUpdateNoopWritesNoLog(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	created, _ := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")

	same := "Alice"
	if _, err := svc.UpdateCustomer(ctx, created.Record.ID, &customer.UpdateCustomerRequest{
		FirstName: &same,
	}, "editor"); err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}

	entries, _ := store.ListChangeLog(ctx, created.Record.ID)
	if len(entries) != 0 {
		t.Fatalf("no-op update logged %d entries", len(entries))
	}
}

func TestUpdateConflictPrompts(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	bob, err := svc.CreateCustomer(ctx, createReq("upload", "Bob", "254711000002"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	// Editing Bob's phone onto Alice's collides.
	alicePhone := "254711000001"
	res, err := svc.UpdateCustomer(ctx, bob.Record.ID, &customer.UpdateCustomerRequest{
		Phone: &alicePhone,
	}, "editor")
	if err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}
	if res.Status != StatusDuplicatePrompt {
		t.Fatalf("status = %q, want duplicate_prompt", res.Status)
	}

	// Nothing was written.
	got, _ := store.GetByID(ctx, bob.Record.ID)
	if got.Phone.String != "254711000002" {
		t.Fatalf("conflicting update leaked: %+v", got)
	}
}

func TestUpdateFailedChangeLogRollsBack(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	created, _ := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")

	store.failChangeLog = true
	newName := "Alicia"
	_, err := svc.UpdateCustomer(ctx, created.Record.ID, &customer.UpdateCustomerRequest{
		FirstName: &newName,
	}, "editor")
	if err == nil {
		t.Fatal("update succeeded despite change-log failure")
	}

	// The field update must not survive without its audit trail.
	got, _ := store.GetByID(ctx, created.Record.ID)
	if got.FirstName.String != "Alice" {
		t.Fatalf("update survived rollback: %+v", got)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	svc, _, _ := newTestService(newMemStore())
	name := "Ghost"
	_, err := svc.UpdateCustomer(context.Background(), 404, &customer.UpdateCustomerRequest{
		FirstName: &name,
	}, "editor")
	if !errors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	created, _ := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")
	newName := "Alicia"
	if _, err := svc.UpdateCustomer(ctx, created.Record.ID, &customer.UpdateCustomerRequest{
		FirstName: &newName,
	}, "editor"); err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}
	store.reminderLogs[created.Record.ID] = 2

	if err := svc.DeleteCustomer(ctx, created.Record.ID); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}

	if _, err := store.GetByID(ctx, created.Record.ID); !errors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("record survived delete: %v", err)
	}
	entries, _ := store.ListChangeLog(ctx, created.Record.ID)
	if len(entries) != 0 {
		t.Fatalf("%d change-log rows survived delete", len(entries))
	}
	if _, ok := store.reminderLogs[created.Record.ID]; ok {
		t.Fatal("reminder logs survived delete")
	}
}

func TestDeleteMissingRecord(t *testing.T) {
	svc, _, _ := newTestService(newMemStore())
	err := svc.DeleteCustomer(context.Background(), 404)
	if !errors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateNotifies(t *testing.T) {
	store := newMemStore()
	svc, _, notifier := newTestService(store)
	ctx := context.Background()

	res, err := svc.CreateCustomer(ctx, createReq("upload", "Alice", "254711000001"), "tester")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) != 1 {
		t.Fatalf("%d events, want 1", len(notifier.events))
	}
	if notifier.events[0].UID != res.Record.UID {
		t.Fatalf("event UID = %q, want %q", notifier.events[0].UID, res.Record.UID)
	}
}

func TestCreateUnknownReferenceRejected(t *testing.T) {
	store := newMemStore()
	plans := newMemPlanStore()
	refs := &memRefs{teams: map[string]bool{"alpha": true}, agents: map[string]bool{}}
	svc := NewService(store, refs, plans, nil, zap.NewNop())
	ctx := context.Background()

	req := createReq("upload", "Alice", "254711000001")
	req.Team = "beta"
	_, err := svc.CreateCustomer(ctx, req, "tester")
	if !errors.Is(err, xerrors.ErrReferenceNotFound) {
		t.Fatalf("err = %v, want ErrReferenceNotFound", err)
	}

	req.Team = "alpha"
	if _, err := svc.CreateCustomer(ctx, req, "tester"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
}
