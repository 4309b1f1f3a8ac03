// internal/service/customer/resolver.go
package customer

import (
	"fmt"
	"strings"

	"leadcrm-service/internal/domain/customer"
	xerrors "leadcrm-service/internal/pkg/errors"
)

// Action is the caller-chosen resolution for a detected duplicate.
type Action string

const (
	ActionSkip    Action = "skip"
	ActionReplace Action = "replace"
	ActionAppend  Action = "append"
)

// ParseAction validates a raw action value against the closed set.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionSkip:
		return ActionSkip, nil
	case ActionReplace:
		return ActionReplace, nil
	case ActionAppend:
		return ActionAppend, nil
	}
	return "", fmt.Errorf("%w: %q", xerrors.ErrInvalidAction, s)
}

// OutcomeKind tags what write, if any, the caller must perform.
type OutcomeKind int

const (
	OutcomeSkip   OutcomeKind = iota // no write
	OutcomeUpdate                    // UPDATE keyed by Record.ID
	OutcomeInsert                    // INSERT of Record
)

// Outcome is a resolved conflict. The resolver performs no writes itself;
// if the follow-up write fails the enclosing transaction must roll back.
type Outcome struct {
	Kind   OutcomeKind
	Record *customer.Record
}

// Resolve maps (action, incoming, existing) to an outcome.
//
//   - skip: no write.
//   - replace: incoming field values merged onto the existing record's ID,
//     identifier, queue and creation timestamp. Fields absent from the
//     incoming record become null; nothing beyond identity is preserved.
//   - append: a new record carrying variantUID, the "<base>__<k>" identifier
//     the caller reserved for the existing record's lineage.
func Resolve(action Action, incoming, existing *customer.Record, variantUID string) (Outcome, error) {
	switch action {
	case ActionSkip:
		return Outcome{Kind: OutcomeSkip}, nil

	case ActionReplace:
		merged := *incoming
		merged.ID = existing.ID
		merged.UID = existing.UID
		merged.Queue = existing.Queue
		merged.CreatedAt = existing.CreatedAt
		return Outcome{Kind: OutcomeUpdate, Record: &merged}, nil

	case ActionAppend:
		appended := *incoming
		appended.ID = 0
		appended.Queue = existing.Queue
		appended.UID = variantUID
		return Outcome{Kind: OutcomeInsert, Record: &appended}, nil
	}

	return Outcome{}, fmt.Errorf("%w: %q", xerrors.ErrInvalidAction, string(action))
}
