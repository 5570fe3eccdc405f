package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/rafflekit/engine/internal/codegen"
	"github.com/rafflekit/engine/internal/engine"
	"github.com/rafflekit/engine/internal/metrics"
	"github.com/rafflekit/engine/internal/model"
	"github.com/rafflekit/engine/internal/repository"
)

// SubmissionFields carries the user-supplied entry data for a redemption.
// Input-shape validation happens before the engine is called.
type SubmissionFields struct {
	Contact    string
	Experience string
	Preference string
}

// RedemptionService coordinates coupon redemption: coupon validation,
// submission creation and the coupon state transition happen as one atomic
// unit, so at most one submission is ever created per coupon.
type RedemptionService struct {
	postgres       *sqlx.DB
	couponRepo     *repository.CouponRepository
	submissionRepo *repository.SubmissionRepository
	auditRepo      *repository.AuditRepository
}

// NewRedemptionService creates a new RedemptionService instance
func NewRedemptionService(postgres *sqlx.DB) *RedemptionService {
	return &RedemptionService{
		postgres:       postgres,
		couponRepo:     repository.NewCouponRepository(),
		submissionRepo: repository.NewSubmissionRepository(),
		auditRepo:      repository.NewAuditRepository(),
	}
}

// Redeem consumes a coupon and creates the submission for it. The caller
// receives a distinct outcome for "invalid code", "already redeemed" and
// "expired", since those imply different user actions.
func (s *RedemptionService) Redeem(ctx context.Context, code string, fields SubmissionFields, clientMeta string) (*model.Submission, error) {
	const op = "redemption.redeem"

	// Start timing for metrics
	start := time.Now()
	result := "failed"

	// Defer metric recording to ensure it's always called
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.RecordRedeemDuration(result, duration)
	}()

	coupon, err := s.couponRepo.GetByCode(s.postgres, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, engine.E(op, engine.KindNotFound, engine.ReasonInvalidCode, err)
		}
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}

	now := time.Now()

	switch coupon.Status {
	case model.CouponActive:
		// Expiry is checked here even if the sweeper has not run yet.
		if coupon.ExpiresAt.Valid && !coupon.ExpiresAt.Time.After(now) {
			return nil, engine.E(op, engine.KindInvalidState, engine.ReasonExpired, nil)
		}
	case model.CouponRedeemed:
		return nil, engine.E(op, engine.KindInvalidState, engine.ReasonAlreadyRedeemed, nil)
	case model.CouponExpired:
		return nil, engine.E(op, engine.KindInvalidState, engine.ReasonExpired, nil)
	case model.CouponDeactivated:
		return nil, engine.E(op, engine.KindInvalidState, engine.ReasonDeactivated, nil)
	default:
		return nil, engine.E(op, engine.KindInvalidState, engine.ReasonNotActive, fmt.Errorf("unknown status %q", coupon.Status))
	}

	// Start transaction: the coupon transition and the submission insert
	// either both commit or neither does.
	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.couponRepo.TryMarkRedeemed(tx, coupon.ID, fields.Contact, now); err != nil {
		if errors.Is(err, repository.ErrNotActive) {
			// Lost the race to a concurrent redemption of the same code.
			result = "conflict"
			return nil, engine.E(op, engine.KindConflict, engine.ReasonAlreadyRedeemed, err)
		}
		return nil, fmt.Errorf("failed to mark coupon as redeemed: %w", err)
	}

	submission := &model.Submission{
		CouponID:   coupon.ID,
		Contact:    fields.Contact,
		Experience: nullString(fields.Experience),
		Preference: nullString(fields.Preference),
		ClientMeta: nullString(clientMeta),
		CreatedAt:  now,
	}
	if err := s.submissionRepo.Create(tx, submission); err != nil {
		if errors.Is(err, repository.ErrDuplicateCoupon) {
			// The conditional update just won ACTIVE->REDEEMED, so an existing
			// submission for this coupon means the 1:1 invariant was already
			// broken. Surface loudly, never swallow.
			log.Error().Str("code", code).Int64("coupon_id", coupon.ID).
				Msg("submission already exists for a coupon that was still ACTIVE")
			return nil, engine.E(op, engine.KindInconsistent, engine.ReasonDuplicateSubmission, err)
		}
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	entry := &model.AuditEntry{
		ActorID:    fields.Contact,
		Action:     model.ActionRedeem,
		EntityType: "coupon",
		EntityID:   coupon.ID,
		Before:     mustJSON(map[string]interface{}{"status": model.CouponActive}),
		After: mustJSON(map[string]interface{}{
			"status":        model.CouponRedeemed,
			"submission_id": submission.ID,
		}),
		CreatedAt: now,
	}
	if err := s.auditRepo.Append(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	result = "success"

	return submission, nil
}

// Deactivate is the explicit admin transition ACTIVE -> DEACTIVATED.
func (s *RedemptionService) Deactivate(ctx context.Context, code, actorID string) (*model.Coupon, error) {
	const op = "redemption.deactivate"

	coupon, err := s.couponRepo.GetByCode(s.postgres, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, engine.E(op, engine.KindNotFound, engine.ReasonInvalidCode, err)
		}
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.couponRepo.TryMarkDeactivated(tx, coupon.ID); err != nil {
		if errors.Is(err, repository.ErrNotActive) {
			return nil, engine.E(op, engine.KindInvalidState, engine.ReasonNotActive, err)
		}
		return nil, fmt.Errorf("failed to deactivate coupon: %w", err)
	}

	entry := &model.AuditEntry{
		ActorID:    actorID,
		Action:     model.ActionDeactivate,
		EntityType: "coupon",
		EntityID:   coupon.ID,
		Before:     mustJSON(map[string]interface{}{"status": coupon.Status}),
		After:      mustJSON(map[string]interface{}{"status": model.CouponDeactivated}),
		CreatedAt:  time.Now(),
	}
	if err := s.auditRepo.Append(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	coupon.Status = model.CouponDeactivated
	return coupon, nil
}

// GenerateBatch creates a batch record and the pre-generated coupons for it,
// all within one transaction. Returns the generated codes in index order.
func (s *RedemptionService) GenerateBatch(ctx context.Context, count int, expiresAt *time.Time, createdBy string) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", count)
	}

	now := time.Now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	batch := &model.CouponBatch{Size: int32(count), CreatedBy: createdBy, CreatedAt: now}
	if err := s.couponRepo.CreateBatchRecord(tx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch record: %w", err)
	}

	gen := codegen.NewGenerator(batch.ID)
	codes := make([]string, 0, count)
	coupons := make([]model.Coupon, 0, count)
	for i := 0; i < count; i++ {
		code, err := gen.Code(uint64(i))
		if err != nil {
			return nil, fmt.Errorf("failed to generate coupon code: %w", err)
		}
		codes = append(codes, code)
		coupons = append(coupons, model.Coupon{
			Code:      code,
			BatchID:   sql.NullInt64{Int64: batch.ID, Valid: true},
			Status:    model.CouponActive,
			ExpiresAt: nullTime(expiresAt),
			CreatedBy: createdBy,
			GenMethod: "aes_batch",
			CreatedAt: now,
		})
	}

	if err := s.couponRepo.CreateBatch(tx, coupons); err != nil {
		return nil, fmt.Errorf("failed to store coupons: %w", err)
	}

	entry := &model.AuditEntry{
		ActorID:    createdBy,
		Action:     model.ActionGenerate,
		EntityType: "coupon_batch",
		EntityID:   batch.ID,
		Before:     mustJSON(map[string]interface{}{}),
		After:      mustJSON(map[string]interface{}{"size": count}),
		CreatedAt:  now,
	}
	if err := s.auditRepo.Append(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return codes, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// mustJSON encodes an audit snapshot. The maps passed here only hold strings
// and integers, so encoding cannot fail.
func mustJSON(v map[string]interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
