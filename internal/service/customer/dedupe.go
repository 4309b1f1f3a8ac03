// internal/service/customer/dedupe.go
package customer

import (
	"context"
	"fmt"

	"leadcrm-service/internal/domain/customer"
)

// Mode selects the duplicate-match semantics. The two modes are distinct,
// named configurations; they are never merged into one check.
type Mode int

const (
	// MatchAny flags a record when ANY contact field (phone, alt phone,
	// WhatsApp or email) equals a non-empty stored value (OR across contact
	// fields). A shared first name alone is never a duplicate signal; it is
	// only reported alongside a contact hit. Used by the single-create path.
	MatchAny Mode = iota

	// MatchContactAndName is the stricter compound check: a contact field
	// AND the first name must both match. Used as a secondary identity pass
	// during bulk upload.
	MatchContactAndName
)

// Match pairs a colliding stored record with the specific fields that
// collided. A record may collide on more than one field.
type Match struct {
	Record customer.Record  `json:"record"`
	Fields []customer.Field `json:"fields"`
}

// Report is the detector's outcome.
type Report struct {
	Matched bool    `json:"matched"`
	Matches []Match `json:"matches,omitempty"`
}

// Detect queries stored records colliding with the candidate's contact
// fields under the given queue and projects, per record, which fields
// matched. Fields with an empty candidate value never participate, and an
// empty stored value never matches. A candidate without any contact field
// never matches: two records sharing only a name are not duplicates. Pure
// query plus projection; no side effects.
func Detect(ctx context.Context, tx Tx, queue string, cand customer.Candidate, mode Mode, excludeID int64) (Report, error) {
	contact := contactFields(cand)
	if len(contact) == 0 {
		return Report{}, nil
	}
	name := cand[customer.FieldFirstName]
	if mode == MatchContactAndName && name == "" {
		// Compound mode needs the name; without it there is nothing to check.
		return Report{}, nil
	}

	query := customer.MatchQuery{
		Queue:       queue,
		Fields:      contact,
		RequireName: mode == MatchContactAndName,
		ExcludeID:   excludeID,
	}
	if query.RequireName {
		query.Fields[customer.FieldFirstName] = name
	}

	rows, err := tx.FindMatches(ctx, query)
	if err != nil {
		return Report{}, fmt.Errorf("failed to query duplicates: %w", err)
	}

	report := Report{}
	for i := range rows {
		matched := matchedFields(&rows[i], nonEmpty(cand), mode)
		if len(matched) == 0 {
			continue
		}
		report.Matches = append(report.Matches, Match{Record: rows[i], Fields: matched})
	}
	report.Matched = len(report.Matches) > 0
	return report, nil
}

// matchedFields projects the colliding fields of one stored record. At
// least one contact field must collide; a name-only overlap is discarded.
func matchedFields(rec *customer.Record, cand customer.Candidate, mode Mode) []customer.Field {
	var out []customer.Field
	contactHit := false
	nameHit := false

	for _, f := range []customer.Field{
		customer.FieldPhone,
		customer.FieldAltPhone,
		customer.FieldWhatsApp,
		customer.FieldEmail,
		customer.FieldFirstName,
	} {
		v, ok := cand[f]
		if !ok || v == "" {
			continue
		}
		stored := rec.FieldValue(f)
		if stored == "" || stored != v {
			continue
		}
		out = append(out, f)
		if f == customer.FieldFirstName {
			nameHit = true
		} else {
			contactHit = true
		}
	}

	if !contactHit {
		return nil
	}
	if mode == MatchContactAndName && !nameHit {
		return nil
	}
	return out
}

// contactFields projects the non-empty contact fields of a candidate. The
// first name is not a contact field.
func contactFields(cand customer.Candidate) customer.Candidate {
	out := customer.Candidate{}
	for _, f := range []customer.Field{
		customer.FieldPhone,
		customer.FieldAltPhone,
		customer.FieldWhatsApp,
		customer.FieldEmail,
	} {
		if v := cand[f]; v != "" {
			out[f] = v
		}
	}
	return out
}

func nonEmpty(cand customer.Candidate) customer.Candidate {
	out := customer.Candidate{}
	for f, v := range cand {
		if v != "" {
			out[f] = v
		}
	}
	return out
}
