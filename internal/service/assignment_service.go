package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/rafflekit/engine/internal/engine"
	"github.com/rafflekit/engine/internal/metrics"
	"github.com/rafflekit/engine/internal/model"
	"github.com/rafflekit/engine/internal/repository"
)

// AssignmentService coordinates exclusive reward-account reservation and
// submission linkage. Reservation and linkage happen in one transaction, so
// a failed linkage never leaves an orphaned reservation.
type AssignmentService struct {
	postgres       *sqlx.DB
	rewardRepo     *repository.RewardRepository
	submissionRepo *repository.SubmissionRepository
	couponRepo     *repository.CouponRepository
	auditRepo      *repository.AuditRepository
}

// NewAssignmentService creates a new AssignmentService instance
func NewAssignmentService(postgres *sqlx.DB) *AssignmentService {
	return &AssignmentService{
		postgres:       postgres,
		rewardRepo:     repository.NewRewardRepository(),
		submissionRepo: repository.NewSubmissionRepository(),
		couponRepo:     repository.NewCouponRepository(),
		auditRepo:      repository.NewAuditRepository(),
	}
}

// Assign reserves a reward account for a submission. Reassignment is never
// implicit: a submission that already holds a reward must be released with
// Remove first, and in that case the requested account is left untouched.
func (s *AssignmentService) Assign(ctx context.Context, submissionID, rewardID int64, assignedBy, notes string) (*model.Submission, error) {
	const op = "assignment.assign"

	start := time.Now()
	result := "failed"
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.RecordAssignDuration(result, duration)
	}()

	submission, err := s.submissionRepo.FindByID(s.postgres, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, engine.E(op, engine.KindNotFound, engine.ReasonSubmissionMissing, err)
		}
		return nil, fmt.Errorf("failed to look up submission: %w", err)
	}

	if _, err := s.rewardRepo.GetByID(s.postgres, rewardID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, engine.E(op, engine.KindNotFound, engine.ReasonRewardMissing, err)
		}
		return nil, fmt.Errorf("failed to look up reward account: %w", err)
	}

	// Checked before reserving so the requested account stays AVAILABLE when
	// the submission already holds something else.
	if submission.AssignedRewardID.Valid {
		return nil, engine.E(op, engine.KindInvalidState, engine.ReasonAlreadyAssigned, nil)
	}

	now := time.Now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.rewardRepo.TryReserve(tx, rewardID, submissionID, now); err != nil {
		if errors.Is(err, repository.ErrNotAvailable) {
			// Lost the race to a concurrent assignment of the same account.
			result = "conflict"
			return nil, engine.E(op, engine.KindConflict, engine.ReasonNotAvailable, err)
		}
		return nil, fmt.Errorf("failed to reserve reward account: %w", err)
	}

	if err := s.submissionRepo.SetAssignment(tx, submissionID, rewardID, assignedBy, now); err != nil {
		// The rollback releases the reservation taken above.
		if errors.Is(err, repository.ErrAlreadyAssigned) {
			result = "conflict"
			return nil, engine.E(op, engine.KindConflict, engine.ReasonAlreadyAssigned, err)
		}
		return nil, fmt.Errorf("failed to set assignment: %w", err)
	}

	after := map[string]interface{}{
		"status":               model.RewardAssigned,
		"holder_submission_id": submissionID,
	}
	if notes != "" {
		after["notes"] = notes
	}
	entry := &model.AuditEntry{
		ActorID:    assignedBy,
		Action:     model.ActionAssign,
		EntityType: "reward_account",
		EntityID:   rewardID,
		Before:     mustJSON(map[string]interface{}{"status": model.RewardAvailable}),
		After:      mustJSON(after),
		CreatedAt:  now,
	}
	if err := s.auditRepo.Append(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	result = "success"

	updated, err := s.submissionRepo.FindByID(s.postgres, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload submission: %w", err)
	}
	return updated, nil
}

// Remove releases the reward a submission holds. The inventory slot is
// released before the submission link is cleared; within the transaction a
// failed clear rolls the release back so the two can never diverge.
func (s *AssignmentService) Remove(ctx context.Context, submissionID int64, actorID string) (*model.Submission, error) {
	const op = "assignment.remove"

	submission, err := s.submissionRepo.FindByID(s.postgres, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, engine.E(op, engine.KindNotFound, engine.ReasonSubmissionMissing, err)
		}
		return nil, fmt.Errorf("failed to look up submission: %w", err)
	}

	if !submission.AssignedRewardID.Valid {
		return nil, engine.E(op, engine.KindInvalidState, engine.ReasonNotAssigned, nil)
	}
	rewardID := submission.AssignedRewardID.Int64

	now := time.Now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.rewardRepo.Release(tx, rewardID, submissionID); err != nil {
		if errors.Is(err, repository.ErrHolderMismatch) {
			// The reward is no longer held by this submission; a concurrent
			// remove (and possibly reassignment) got there first.
			log.Warn().Int64("submission_id", submissionID).Int64("reward_id", rewardID).
				Msg("reward holder changed between read and release")
			return nil, engine.E(op, engine.KindInvalidState, engine.ReasonHolderMismatch, err)
		}
		return nil, fmt.Errorf("failed to release reward account: %w", err)
	}

	if err := s.submissionRepo.ClearAssignment(tx, submissionID); err != nil {
		if errors.Is(err, repository.ErrNotAssigned) {
			// A concurrent Remove cleared it between our read and this update.
			return nil, engine.E(op, engine.KindConflict, engine.ReasonNotAssigned, err)
		}
		return nil, fmt.Errorf("failed to clear assignment: %w", err)
	}

	entry := &model.AuditEntry{
		ActorID:    actorID,
		Action:     model.ActionRemove,
		EntityType: "reward_account",
		EntityID:   rewardID,
		Before: mustJSON(map[string]interface{}{
			"status":               model.RewardAssigned,
			"holder_submission_id": submissionID,
		}),
		After:     mustJSON(map[string]interface{}{"status": model.RewardAvailable}),
		CreatedAt: now,
	}
	if err := s.auditRepo.Append(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	updated, err := s.submissionRepo.FindByID(s.postgres, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload submission: %w", err)
	}
	return updated, nil
}

// AssignPair is one (submission, reward) pair of a bulk assignment.
type AssignPair struct {
	SubmissionID int64
	RewardID     int64
}

// BulkItem reports the outcome of one pair, in input order.
type BulkItem struct {
	SubmissionID int64
	RewardID     int64
	Success      bool
	Error        string
}

// BulkResult aggregates a bulk assignment run.
type BulkResult struct {
	SuccessCount int
	FailureCount int
	Items        []BulkItem
}

// AssignBulk assigns each pair independently, in input order. One pair's
// engine error never aborts or rolls back the others; only infrastructure
// failures abort the whole call.
func (s *AssignmentService) AssignBulk(ctx context.Context, pairs []AssignPair, assignedBy, notes string) (*BulkResult, error) {
	result := &BulkResult{Items: make([]BulkItem, 0, len(pairs))}

	for _, pair := range pairs {
		item := BulkItem{SubmissionID: pair.SubmissionID, RewardID: pair.RewardID}

		_, err := s.Assign(ctx, pair.SubmissionID, pair.RewardID, assignedBy, notes)
		if err != nil {
			var engErr *engine.Error
			if !errors.As(err, &engErr) {
				return nil, fmt.Errorf("bulk assignment aborted at submission %d: %w", pair.SubmissionID, err)
			}
			item.Error = string(engErr.Reason)
			result.FailureCount++
		} else {
			item.Success = true
			result.SuccessCount++
		}

		result.Items = append(result.Items, item)
	}

	return result, nil
}

// InventoryReport is the read-only aggregate surface consumed by analytics.
type InventoryReport struct {
	Coupons     []repository.StatusCount
	Rewards     []repository.CategoryCount
	Submissions repository.AssignmentCounts
}

// Report returns current counts of coupons by status, reward accounts by
// category and status, and submissions with/without an assignment.
func (s *AssignmentService) Report(ctx context.Context) (*InventoryReport, error) {
	coupons, err := s.couponRepo.CountByStatus(s.postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to count coupons: %w", err)
	}

	rewards, err := s.rewardRepo.InventorySummary(s.postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize rewards: %w", err)
	}

	submissions, err := s.submissionRepo.CountByAssignment(s.postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	return &InventoryReport{
		Coupons:     coupons,
		Rewards:     rewards,
		Submissions: *submissions,
	}, nil
}
