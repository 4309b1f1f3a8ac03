// internal/service/customer/customer.go
package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadcrm-service/internal/domain/customer"
	xerrors "leadcrm-service/internal/pkg/errors"
	"leadcrm-service/internal/pkg/retry"

	"go.uber.org/zap"
)

const (
	// defaultMaxAttempts bounds the identifier-collision retry loop. The
	// store's uniqueness constraint is authoritative; the generator is
	// advisory, so a concurrent insert can consume a proposed identifier
	// and the whole attempt is replayed.
	defaultMaxAttempts = 10

	defaultPlanTTL = 30 * time.Minute
)

// Service is the upsert orchestrator: it composes validation, duplicate
// detection, identifier generation and conflict resolution under one
// transaction boundary.
type Service struct {
	store       Store
	refs        ReferenceStore
	plans       PlanStore
	notifier    Notifier
	logger      *zap.Logger
	maxAttempts int
	planTTL     time.Duration
}

func NewService(store Store, refs ReferenceStore, plans PlanStore, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		refs:        refs,
		plans:       plans,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		planTTL:     defaultPlanTTL,
	}
}

// CreateCustomer validates, deduplicates and persists one record.
//
// With no duplicate action supplied, a detected duplicate yields a
// duplicate_prompt result carrying the match detail; the orchestrator does
// not guess intent. With an action, the conflict resolver decides the write.
// An insert losing the identifier race is replayed with a regenerated
// identifier up to the retry bound.
func (s *Service) CreateCustomer(ctx context.Context, req *customer.CreateCustomerRequest, actor string) (*Result, error) {
	rec, err := s.buildRecord(&req.RecordPayload)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, rec); err != nil {
		return nil, err
	}

	var action Action
	hasAction := req.DuplicateAction != ""
	if hasAction {
		if action, err = ParseAction(req.DuplicateAction); err != nil {
			return nil, err
		}
	}

	var result *Result
	err = retry.Do(ctx, s.maxAttempts, 0, isIdentifierCollision, func(ctx context.Context) error {
		res, err := s.createOnce(ctx, rec, action, hasAction, actor)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return nil, fmt.Errorf("%w: identifier collisions on queue %s", xerrors.ErrExhaustedRetries, rec.Queue)
		}
		return nil, err
	}

	if result.Status == StatusCreated {
		s.logger.Info("customer created",
			zap.String("uid", result.Record.UID),
			zap.String("queue", result.Record.Queue),
		)
		s.notifyCreated(result.Record)
	}
	return result, nil
}

// createOnce runs one full transactional attempt.
func (s *Service) createOnce(ctx context.Context, rec *customer.Record, action Action, hasAction bool, actor string) (*Result, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	report, err := Detect(ctx, tx, rec.Queue, customer.CandidateOf(rec), MatchAny, 0)
	if err != nil {
		return nil, err
	}

	if report.Matched {
		if !hasAction {
			return &Result{Status: StatusDuplicatePrompt, Duplicate: &report}, nil
		}
		return s.resolveConflict(ctx, tx, rec, action, &report.Matches[0].Record, actor)
	}

	uids, err := tx.ListUIDs(ctx, rec.Queue, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}

	fresh := *rec
	fresh.UID = NextIdentifier(rec.Queue, uids)
	now := time.Now()
	fresh.CreatedAt = now
	fresh.UpdatedAt = now

	if err := tx.Insert(ctx, &fresh); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &Result{Status: StatusCreated, Record: &fresh}, nil
}

// resolveConflict applies a caller-chosen action inside the open transaction.
func (s *Service) resolveConflict(ctx context.Context, tx Tx, rec *customer.Record, action Action, existing *customer.Record, actor string) (*Result, error) {
	// The suffix is reserved only when an insert will actually use it; the
	// reservation rolls back with the transaction but never runs backwards
	// after a commit.
	variantUID := ""
	if action == ActionAppend {
		base := BaseOf(existing.UID)
		suffix, err := tx.NextVariantSuffix(ctx, rec.Queue, base)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve variant suffix: %w", err)
		}
		variantUID = VariantUID(base, suffix)
	}

	outcome, err := Resolve(action, rec, existing, variantUID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch outcome.Kind {
	case OutcomeSkip:
		return &Result{Status: StatusSkipped, Record: existing}, nil

	case OutcomeUpdate:
		outcome.Record.UpdatedAt = now
		if err := tx.Update(ctx, outcome.Record); err != nil {
			return nil, fmt.Errorf("failed to replace customer: %w", err)
		}
		if entries := diffEntries(existing, outcome.Record, actor); len(entries) > 0 {
			if err := tx.AppendChangeLog(ctx, entries); err != nil {
				return nil, fmt.Errorf("failed to append change log: %w", err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &Result{Status: StatusUpdated, Record: outcome.Record}, nil

	case OutcomeInsert:
		outcome.Record.CreatedAt = now
		outcome.Record.UpdatedAt = now
		if err := tx.Insert(ctx, outcome.Record); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &Result{Status: StatusCreated, Record: outcome.Record}, nil
	}

	return nil, fmt.Errorf("%w: unhandled outcome", xerrors.ErrInvalidAction)
}

// UpdateCustomer applies a partial update: each supplied field is
// re-validated, conflicts are checked against other records, the diff is
// change-logged and the whole mutation commits or rolls back as one unit.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, req *customer.UpdateCustomerRequest, actor string) (*Result, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := tx.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if err := s.applyUpdate(&updated, req); err != nil {
		return nil, err
	}

	report, err := Detect(ctx, tx, updated.Queue, customer.CandidateOf(&updated), MatchAny, existing.ID)
	if err != nil {
		return nil, err
	}
	if report.Matched {
		return &Result{Status: StatusDuplicatePrompt, Duplicate: &report}, nil
	}

	updated.UpdatedAt = time.Now()
	if err := tx.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	// A failed change-log write fails the whole mutation; the field update
	// must not survive without its audit trail.
	if entries := diffEntries(existing, &updated, actor); len(entries) > 0 {
		if err := tx.AppendChangeLog(ctx, entries); err != nil {
			return nil, fmt.Errorf("failed to append change log: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("customer updated", zap.Int64("customer_id", id), zap.String("actor", actor))
	return &Result{Status: StatusUpdated, Record: &updated}, nil
}

// DeleteCustomer removes a record and its dependent rows. The cascade is an
// explicit ordered sequence, not left to the store's referential integrity:
// change-log rows, reminder rows, then the record itself.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := tx.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := tx.DeleteChangeLogs(ctx, id); err != nil {
		return fmt.Errorf("failed to delete change logs: %w", err)
	}
	if err := tx.DeleteReminderLogs(ctx, id); err != nil {
		return fmt.Errorf("failed to delete reminder logs: %w", err)
	}
	if err := tx.DeleteCustomer(ctx, id); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("customer deleted", zap.Int64("customer_id", id), zap.String("uid", rec.UID))
	return nil
}

func (s *Service) applyUpdate(rec *customer.Record, req *customer.UpdateCustomerRequest) error {
	setString := func(field string, dst *sql.NullString, src *string) error {
		if src == nil {
			return nil
		}
		if err := checkLength(field, *src); err != nil {
			return err
		}
		*dst = nullable(*src)
		return nil
	}

	for _, f := range []struct {
		name string
		dst  *sql.NullString
		src  *string
	}{
		{"first_name", &rec.FirstName, req.FirstName},
		{"last_name", &rec.LastName, req.LastName},
		{"email", &rec.Email, req.Email},
		{"address", &rec.Address, req.Address},
		{"country", &rec.Country, req.Country},
		{"designation", &rec.Designation, req.Designation},
		{"comment", &rec.Comment, req.Comment},
		{"agent_name", &rec.AgentName, req.AgentName},
		{"team", &rec.Team, req.Team},
	} {
		if err := setString(f.name, f.dst, f.src); err != nil {
			return err
		}
	}

	for _, f := range []struct {
		name string
		dst  *sql.NullString
		src  *string
	}{
		{"phone", &rec.Phone, req.Phone},
		{"alt_phone", &rec.AltPhone, req.AltPhone},
		{"whatsapp", &rec.WhatsApp, req.WhatsApp},
	} {
		if f.src == nil {
			continue
		}
		normalized, err := normalizePhone(f.name, *f.src)
		if err != nil {
			return err
		}
		*f.dst = nullable(normalized)
	}

	if req.Disposition != nil {
		disposition, ok := customer.ParseDisposition(*req.Disposition)
		if !ok && *req.Disposition != "" {
			s.logger.Warn("unknown disposition, using default",
				zap.String("disposition", *req.Disposition),
			)
		}
		rec.Disposition = disposition
	}

	if req.FollowUpAt != nil {
		if *req.FollowUpAt == "" {
			rec.FollowUpAt = sql.NullTime{}
		} else if t, parsed := parseFlexibleDate(*req.FollowUpAt); parsed {
			rec.FollowUpAt = sql.NullTime{Time: t, Valid: true}
		} else {
			s.logger.Warn("unparseable follow-up date, storing null",
				zap.String("follow_up_at", *req.FollowUpAt),
			)
			rec.FollowUpAt = sql.NullTime{}
		}
	}

	if req.Tags != nil {
		rec.Tags = req.Tags
	}
	return nil
}

// checkReferences validates the team and assignee cross-references before
// any write begins.
func (s *Service) checkReferences(ctx context.Context, rec *customer.Record) error {
	if s.refs == nil {
		return nil
	}
	if rec.Team.Valid {
		ok, err := s.refs.TeamExists(ctx, rec.Team.String)
		if err != nil {
			return fmt.Errorf("failed to check team reference: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: team %q", xerrors.ErrReferenceNotFound, rec.Team.String)
		}
	}
	if rec.AgentName.Valid {
		ok, err := s.refs.AgentExists(ctx, rec.AgentName.String)
		if err != nil {
			return fmt.Errorf("failed to check agent reference: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: agent %q", xerrors.ErrReferenceNotFound, rec.AgentName.String)
		}
	}
	return nil
}

func (s *Service) notifyCreated(rec *customer.Record) {
	if s.notifier == nil {
		return
	}
	str := func(v sql.NullString) string {
		if !v.Valid {
			return ""
		}
		return v.String
	}
	s.notifier.NotifyNewCustomer(customer.NewCustomerEvent{
		UID:       rec.UID,
		Queue:     rec.Queue,
		FirstName: str(rec.FirstName),
		Phone:     str(rec.Phone),
		WhatsApp:  str(rec.WhatsApp),
		Email:     str(rec.Email),
		AgentName: str(rec.AgentName),
		CreatedAt: rec.CreatedAt,
	})
}

func isIdentifierCollision(err error) bool {
	return errors.Is(err, xerrors.ErrDuplicateEntry)
}
