// internal/service/customer/result.go
package customer

import (
	"database/sql"
	"strings"
	"time"

	"leadcrm-service/internal/domain/changelog"
	"leadcrm-service/internal/domain/customer"

	"github.com/oklog/ulid/v2"
)

// Status tags the outcome of a create/update operation. Mapping statuses to
// transport-level responses is the caller's job.
type Status string

const (
	StatusCreated         Status = "created"
	StatusDuplicatePrompt Status = "duplicate_prompt"
	StatusUpdated         Status = "updated"
	StatusSkipped         Status = "skipped"
	StatusRejected        Status = "rejected"
)

// Result is the tagged outcome returned to the request layer.
type Result struct {
	Status    Status           `json:"status"`
	Record    *customer.Record `json:"record,omitempty"`
	Duplicate *Report          `json:"duplicate,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// mutable fields tracked by the change log, in emission order.
var diffedFields = []string{
	"first_name", "last_name", "phone", "alt_phone", "whatsapp", "email",
	"address", "country", "designation", "disposition", "comment",
	"agent_name", "team", "follow_up_at", "tags",
}

// diffEntries emits one change-log entry per field whose value differs
// between old and new. Entries share one batch id.
func diffEntries(old, new *customer.Record, actor string) []changelog.Entry {
	batchID := ulid.Make().String()
	now := time.Now()

	var entries []changelog.Entry
	for _, field := range diffedFields {
		oldV := fieldString(old, field)
		newV := fieldString(new, field)
		if oldV == newV {
			continue
		}
		entries = append(entries, changelog.Entry{
			CustomerID: old.ID,
			BatchID:    batchID,
			Field:      field,
			OldValue:   oldV,
			NewValue:   newV,
			Actor:      actor,
			CreatedAt:  now,
		})
	}
	return entries
}

func fieldString(r *customer.Record, field string) string {
	str := func(v sql.NullString) string {
		if !v.Valid {
			return ""
		}
		return v.String
	}
	switch field {
	case "first_name":
		return str(r.FirstName)
	case "last_name":
		return str(r.LastName)
	case "phone":
		return str(r.Phone)
	case "alt_phone":
		return str(r.AltPhone)
	case "whatsapp":
		return str(r.WhatsApp)
	case "email":
		return str(r.Email)
	case "address":
		return str(r.Address)
	case "country":
		return str(r.Country)
	case "designation":
		return str(r.Designation)
	case "disposition":
		return string(r.Disposition)
	case "comment":
		return str(r.Comment)
	case "agent_name":
		return str(r.AgentName)
	case "team":
		return str(r.Team)
	case "follow_up_at":
		if !r.FollowUpAt.Valid {
			return ""
		}
		return r.FollowUpAt.Time.UTC().Format(time.RFC3339)
	case "tags":
		return strings.Join(r.Tags, ",")
	}
	return ""
}
