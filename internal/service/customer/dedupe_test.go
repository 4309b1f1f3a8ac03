package customer

import (
	"context"
	"testing"

	"leadcrm-service/internal/domain/customer"
)

func seedQueue(t *testing.T, store *memStore) {
	t.Helper()
	store.seed(customer.Record{
		Queue: "upload", UID: "upload_1",
		FirstName: str("Alice"), Phone: str("254711000001"), Email: str("alice@example.com"),
	})
	store.seed(customer.Record{
		Queue: "upload", UID: "upload_2",
		FirstName: str("Bob"), Phone: str("254711000002"),
	})
	store.seed(customer.Record{
		Queue: "other", UID: "other_1",
		FirstName: str("Alice"), Phone: str("254711000001"),
	})
}

func detect(t *testing.T, store *memStore, queue string, cand customer.Candidate, mode Mode) Report {
	t.Helper()
	tx, err := store.BeginTx(context.Background())
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	defer tx.Rollback(context.Background())

	report, err := Detect(context.Background(), tx, queue, cand, mode, 0)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	return report
}

func TestDetectMatchAnySingleField(t *testing.T) {
	store := newMemStore()
	seedQueue(t, store)

	report := detect(t, store, "upload", customer.Candidate{
		customer.FieldPhone: "254711000001",
	}, MatchAny)

	if !report.Matched || len(report.Matches) != 1 {
		t.Fatalf("report = %+v, want one match", report)
	}
	m := report.Matches[0]
	if m.Record.UID != "upload_1" {
		t.Fatalf("matched %q, want upload_1", m.Record.UID)
	}
	if len(m.Fields) != 1 || m.Fields[0] != customer.FieldPhone {
		t.Fatalf("fields = %v, want [phone]", m.Fields)
	}
}

func TestDetectReportsEveryMatchedField(t *testing.T) {
	store := newMemStore()
	seedQueue(t, store)

	report := detect(t, store, "upload", customer.Candidate{
		customer.FieldPhone:     "254711000001",
		customer.FieldEmail:     "alice@example.com",
		customer.FieldFirstName: "Alice",
	}, MatchAny)

	if len(report.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(report.Matches))
	}
	if len(report.Matches[0].Fields) != 3 {
		t.Fatalf("fields = %v, want phone, email and first_name", report.Matches[0].Fields)
	}
}

func TestDetectNameAloneNeverMatches(t *testing.T) {
	store := newMemStore()
	seedQueue(t, store)

	// No contact field at all: nothing to check.
	report := detect(t, store, "upload", customer.Candidate{
		customer.FieldFirstName: "Alice",
	}, MatchAny)
	if report.Matched {
		t.Fatalf("name-only candidate matched: %+v", report)
	}

	// Name collides but the contact value does not: still no match.
	report = detect(t, store, "upload", customer.Candidate{
		customer.FieldFirstName: "Alice",
		customer.FieldPhone:     "254711999999",
	}, MatchAny)
	if report.Matched {
		t.Fatalf("name overlap without a contact hit matched: %+v", report)
	}
}

func TestDetectScopedToQueue(t *testing.T) {
	store := newMemStore()
	seedQueue(t, store)

	report := detect(t, store, "fresh", customer.Candidate{
		customer.FieldPhone: "254711000001",
	}, MatchAny)

	if report.Matched {
		t.Fatalf("matched across queues: %+v", report)
	}
}

func TestDetectEmptyValuesNeverMatch(t *testing.T) {
	store := newMemStore()
	store.seed(customer.Record{Queue: "upload", UID: "upload_1", FirstName: str("NoContact")})

	report := detect(t, store, "upload", customer.Candidate{
		customer.FieldPhone: "",
		customer.FieldEmail: "",
	}, MatchAny)

	if report.Matched {
		t.Fatalf("empty candidate fields matched: %+v", report)
	}
}

func TestDetectCompoundRequiresBoth(t *testing.T) {
	store := newMemStore()
	seedQueue(t, store)

	// Phone matches Alice but the name does not: no compound match.
	report := detect(t, store, "upload", customer.Candidate{
		customer.FieldPhone:     "254711000001",
		customer.FieldFirstName: "Alicia",
	}, MatchContactAndName)
	if report.Matched {
		t.Fatalf("compound matched on contact alone: %+v", report)
	}

	// Name matches Bob but no contact field does: still no compound match.
	report = detect(t, store, "upload", customer.Candidate{
		customer.FieldPhone:     "254711999999",
		customer.FieldFirstName: "Bob",
	}, MatchContactAndName)
	if report.Matched {
		t.Fatalf("compound matched on name alone: %+v", report)
	}

	// Both match: compound hit.
	report = detect(t, store, "upload", customer.Candidate{
		customer.FieldPhone:     "254711000002",
		customer.FieldFirstName: "Bob",
	}, MatchContactAndName)
	if !report.Matched {
		t.Fatal("compound missed a contact+name match")
	}
}

func TestDetectCompoundWithoutNameIsNoop(t *testing.T) {
	store := newMemStore()
	seedQueue(t, store)

	report := detect(t, store, "upload", customer.Candidate{
		customer.FieldPhone: "254711000001",
	}, MatchContactAndName)
	if report.Matched {
		t.Fatalf("compound mode matched without a name: %+v", report)
	}
}

func TestDetectExcludesOwnRecord(t *testing.T) {
	store := newMemStore()
	alice := store.seed(customer.Record{
		Queue: "upload", UID: "upload_1",
		FirstName: str("Alice"), Phone: str("254711000001"),
	})

	tx, _ := store.BeginTx(context.Background())
	defer tx.Rollback(context.Background())
	report, err := Detect(context.Background(), tx, "upload",
		customer.CandidateOf(alice), MatchAny, alice.ID)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if report.Matched {
		t.Fatalf("record matched itself: %+v", report)
	}
}
