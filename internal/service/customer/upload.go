// internal/service/customer/upload.go
package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcrm-service/internal/domain/customer"
	xerrors "leadcrm-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// UploadPlan is the transient result of batch pre-processing, parked in the
// plan store until the caller confirms. Nothing is inserted at plan time.
type UploadPlan struct {
	ID         string             `json:"id"`
	Queue      string             `json:"queue"`
	New        []customer.Record  `json:"new"`
	Duplicates []PlannedDuplicate `json:"duplicates"`
	Rejected   []RejectedRow      `json:"rejected"`
	CreatedAt  time.Time          `json:"created_at"`
}

// PlannedDuplicate pairs an incoming row with its detected match.
// StrongMatch reports the stricter contact+name identity check.
type PlannedDuplicate struct {
	Incoming    customer.Record `json:"incoming"`
	Match       Match           `json:"match"`
	StrongMatch bool            `json:"strong_match"`
}

// RejectedRow is a row excluded from the plan, by input position.
type RejectedRow struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// PlanUpload separates a batch into new, duplicate and rejected buckets and
// parks the result for a later confirmation. Rows failing validation or
// naming an unknown team/assignee are isolated into the rejection bucket;
// they never fail the whole batch.
func (s *Service) PlanUpload(ctx context.Context, req *customer.UploadRequest) (*UploadPlan, error) {
	if len(req.Rows) == 0 {
		return nil, xerrors.NewFieldError("rows", "batch is empty")
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Planning only reads; the transaction pins one consistent snapshot.
	defer tx.Rollback(ctx)

	plan := &UploadPlan{
		ID:        ulid.Make().String(),
		Queue:     req.Queue,
		CreatedAt: time.Now(),
	}

	for i := range req.Rows {
		row := req.Rows[i]
		row.Queue = req.Queue

		rec, err := s.buildRecord(&row)
		if err != nil {
			plan.Rejected = append(plan.Rejected, RejectedRow{Index: i, Reason: err.Error()})
			continue
		}
		if err := s.checkReferences(ctx, rec); err != nil {
			if errors.Is(err, xerrors.ErrReferenceNotFound) {
				plan.Rejected = append(plan.Rejected, RejectedRow{Index: i, Reason: err.Error()})
				continue
			}
			return nil, err
		}

		report, err := Detect(ctx, tx, req.Queue, customer.CandidateOf(rec), MatchAny, 0)
		if err != nil {
			return nil, err
		}
		if !report.Matched {
			plan.New = append(plan.New, *rec)
			continue
		}

		strong, err := Detect(ctx, tx, req.Queue, customer.CandidateOf(rec), MatchContactAndName, 0)
		if err != nil {
			return nil, err
		}
		plan.Duplicates = append(plan.Duplicates, PlannedDuplicate{
			Incoming:    *rec,
			Match:       report.Matches[0],
			StrongMatch: strong.Matched,
		})
	}

	if err := s.plans.Put(ctx, plan, s.planTTL); err != nil {
		return nil, fmt.Errorf("failed to store upload plan: %w", err)
	}

	s.logger.Info("upload planned",
		zap.String("plan_id", plan.ID),
		zap.String("queue", plan.Queue),
		zap.Int("new", len(plan.New)),
		zap.Int("duplicates", len(plan.Duplicates)),
		zap.Int("rejected", len(plan.Rejected)),
	)
	return plan, nil
}

// ConfirmUpload replays a parked plan inside one transaction. New records
// receive a contiguous identifier block reserved up front. The batch does
// not re-check for races mid-insert; the store's constraint still rejects a
// lost race and rolls back the whole batch.
// Duplicates resolve per the caller-supplied action, defaulting to skip.
func (s *Service) ConfirmUpload(ctx context.Context, req *customer.ConfirmUploadRequest, actor string) (*customer.ConfirmUploadResult, error) {
	plan, err := s.plans.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	// Validate every decision before any write begins.
	decisions := make(map[int]Action, len(req.Decisions))
	for _, d := range req.Decisions {
		if d.Index < 0 || d.Index >= len(plan.Duplicates) {
			return nil, xerrors.NewFieldError("decisions", fmt.Sprintf("index %d out of range", d.Index))
		}
		action, err := ParseAction(d.Action)
		if err != nil {
			return nil, err
		}
		decisions[d.Index] = action
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &customer.ConfirmUploadResult{}
	now := time.Now()

	uids, err := tx.ListUIDs(ctx, plan.Queue, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}
	block := ReserveBlock(plan.Queue, uids, len(plan.New))
	for i := range plan.New {
		rec := plan.New[i]
		rec.UID = block[i]
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if err := tx.Insert(ctx, &rec); err != nil {
			return nil, err
		}
		result.Inserted++
	}

	for i := range plan.Duplicates {
		dup := &plan.Duplicates[i]
		action, ok := decisions[i]
		if !ok {
			action = ActionSkip
		}

		variantUID := ""
		if action == ActionAppend {
			base := BaseOf(dup.Match.Record.UID)
			suffix, err := tx.NextVariantSuffix(ctx, plan.Queue, base)
			if err != nil {
				return nil, fmt.Errorf("failed to reserve variant suffix: %w", err)
			}
			variantUID = VariantUID(base, suffix)
		}

		outcome, err := Resolve(action, &dup.Incoming, &dup.Match.Record, variantUID)
		if err != nil {
			return nil, err
		}

		switch outcome.Kind {
		case OutcomeSkip:
			result.Skipped++

		case OutcomeUpdate:
			outcome.Record.UpdatedAt = now
			if err := tx.Update(ctx, outcome.Record); err != nil {
				return nil, fmt.Errorf("failed to replace customer: %w", err)
			}
			if entries := diffEntries(&dup.Match.Record, outcome.Record, actor); len(entries) > 0 {
				if err := tx.AppendChangeLog(ctx, entries); err != nil {
					return nil, fmt.Errorf("failed to append change log: %w", err)
				}
			}
			result.Updated++

		case OutcomeInsert:
			outcome.Record.CreatedAt = now
			outcome.Record.UpdatedAt = now
			if err := tx.Insert(ctx, outcome.Record); err != nil {
				return nil, err
			}
			result.Inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.plans.Delete(ctx, plan.ID); err != nil {
		s.logger.Warn("failed to delete confirmed plan", zap.String("plan_id", plan.ID), zap.Error(err))
	}

	s.logger.Info("upload confirmed",
		zap.String("plan_id", plan.ID),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
