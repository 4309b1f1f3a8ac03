// internal/domain/customer/entity.go
package customer

import (
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Disposition is the closed set of call outcomes a record can carry.
type Disposition string

const (
	DispositionNew           Disposition = "new"
	DispositionInterested    Disposition = "interested"
	DispositionNotInterested Disposition = "not_interested"
	DispositionFollowUp      Disposition = "follow_up"
	DispositionConverted     Disposition = "converted"
	DispositionDoNotContact  Disposition = "do_not_contact"

	// DispositionDefault is applied when the input value is missing or not
	// a member of the set.
	DispositionDefault = DispositionNew
)

// ParseDisposition maps a raw value onto the closed set. The second return
// reports whether the input was a recognized member.
func ParseDisposition(s string) (Disposition, bool) {
	switch Disposition(strings.ToLower(strings.TrimSpace(s))) {
	case DispositionNew:
		return DispositionNew, true
	case DispositionInterested:
		return DispositionInterested, true
	case DispositionNotInterested:
		return DispositionNotInterested, true
	case DispositionFollowUp:
		return DispositionFollowUp, true
	case DispositionConverted:
		return DispositionConverted, true
	case DispositionDoNotContact:
		return DispositionDoNotContact, true
	}
	return DispositionDefault, false
}

// Record is the central customer entity. UID is the queue-scoped unique
// identifier: "<queue>_<n>" for a first record, "<base>__<k>" for a variant
// kept via an append resolution.
type Record struct {
	ID    int64  `json:"id" db:"id"`
	Queue string `json:"queue" db:"queue"`
	UID   string `json:"uid" db:"uid"`

	// Candidate-match fields
	FirstName sql.NullString `json:"first_name,omitempty" db:"first_name"`
	LastName  sql.NullString `json:"last_name,omitempty" db:"last_name"`
	Phone     sql.NullString `json:"phone,omitempty" db:"phone"`
	AltPhone  sql.NullString `json:"alt_phone,omitempty" db:"alt_phone"`
	WhatsApp  sql.NullString `json:"whatsapp,omitempty" db:"whatsapp"`
	Email     sql.NullString `json:"email,omitempty" db:"email"`

	// Business fields
	Address     sql.NullString `json:"address,omitempty" db:"address"`
	Country     sql.NullString `json:"country,omitempty" db:"country"`
	Designation sql.NullString `json:"designation,omitempty" db:"designation"`
	Disposition Disposition    `json:"disposition" db:"disposition"`
	Comment     sql.NullString `json:"comment,omitempty" db:"comment"`
	AgentName   sql.NullString `json:"agent_name,omitempty" db:"agent_name"`
	Team        sql.NullString `json:"team,omitempty" db:"team"`
	FollowUpAt  sql.NullTime   `json:"follow_up_at,omitempty" db:"follow_up_at"`
	Tags        pq.StringArray `json:"tags,omitempty" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Field names a candidate-match field used by duplicate detection.
type Field string

const (
	FieldPhone     Field = "phone"
	FieldAltPhone  Field = "alt_phone"
	FieldWhatsApp  Field = "whatsapp"
	FieldEmail     Field = "email"
	FieldFirstName Field = "first_name"
)

// Candidate maps field name to the value to test; only entries with a
// non-empty value participate in detection.
type Candidate map[Field]string

// CandidateOf extracts the candidate-match fields of a record.
func CandidateOf(r *Record) Candidate {
	c := Candidate{}
	put := func(f Field, v sql.NullString) {
		if v.Valid && v.String != "" {
			c[f] = v.String
		}
	}
	put(FieldPhone, r.Phone)
	put(FieldAltPhone, r.AltPhone)
	put(FieldWhatsApp, r.WhatsApp)
	put(FieldEmail, r.Email)
	put(FieldFirstName, r.FirstName)
	return c
}

// FieldValue reads the stored value of a candidate-match field. Null maps
// to the empty string.
func (r *Record) FieldValue(f Field) string {
	var v sql.NullString
	switch f {
	case FieldPhone:
		v = r.Phone
	case FieldAltPhone:
		v = r.AltPhone
	case FieldWhatsApp:
		v = r.WhatsApp
	case FieldEmail:
		v = r.Email
	case FieldFirstName:
		v = r.FirstName
	}
	if !v.Valid {
		return ""
	}
	return v.String
}

// MatchQuery describes a duplicate search against the customer table.
// RequireName switches on the stricter compound check: a contact field AND
// the first name must both match.
type MatchQuery struct {
	Queue       string
	Fields      Candidate
	RequireName bool
	ExcludeID   int64
}

type CustomerStats struct {
	TotalCustomers int64 `json:"total_customers"`
	DueFollowUps   int64 `json:"due_follow_ups"`
	NewThisMonth   int64 `json:"new_this_month"`
	Converted      int64 `json:"converted"`
}
