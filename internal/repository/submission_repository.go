package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/rafflekit/engine/internal/model"
)

// SubmissionRepository handles submission data operations
type SubmissionRepository struct {
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{}
}

// Create inserts a submission for a redeemed coupon. The unique constraint
// on coupon_id enforces the 1:1 coupon/submission invariant as
// defense-in-depth behind the coupon's conditional redeem update.
func (r *SubmissionRepository) Create(db DBExecutor, submission *model.Submission) error {
	query := `
		INSERT INTO submissions (coupon_id, contact, experience, preference, client_meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now()
	}

	err := db.Get(&submission.ID, query,
		submission.CouponID, submission.Contact, submission.Experience,
		submission.Preference, submission.ClientMeta, submission.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCoupon
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// FindByID retrieves a submission by id
func (r *SubmissionRepository) FindByID(db DBExecutor, id int64) (*model.Submission, error) {
	query := `
		SELECT id, coupon_id, contact, experience, preference, client_meta,
		       assigned_reward_id, assigned_at, assigned_by, created_at
		FROM submissions
		WHERE id = $1
	`

	var submission model.Submission
	err := db.Get(&submission, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return &submission, nil
}

// FindWithoutAssignment lists submissions that do not hold a reward yet,
// oldest first.
func (r *SubmissionRepository) FindWithoutAssignment(db DBExecutor, limit, offset int) ([]model.Submission, error) {
	query := `
		SELECT id, coupon_id, contact, experience, preference, client_meta,
		       assigned_reward_id, assigned_at, assigned_by, created_at
		FROM submissions
		WHERE assigned_reward_id IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`

	var submissions []model.Submission
	if err := db.Select(&submissions, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list unassigned submissions: %w", err)
	}

	return submissions, nil
}

// SetAssignment records the reward a submission holds. The IS NULL condition
// makes the update fail when the submission already carries an assignment, so
// callers must release first.
func (r *SubmissionRepository) SetAssignment(db DBExecutor, submissionID, rewardID int64, assignedBy string, now time.Time) error {
	query := `
		UPDATE submissions
		SET assigned_reward_id = $1, assigned_at = $2, assigned_by = $3
		WHERE id = $4 AND assigned_reward_id IS NULL
	`

	result, err := db.Exec(query, rewardID, now, assignedBy, submissionID)
	if err != nil {
		return fmt.Errorf("failed to set assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyAssigned
	}

	return nil
}

// ClearAssignment removes a submission's assignment fields.
func (r *SubmissionRepository) ClearAssignment(db DBExecutor, submissionID int64) error {
	query := `
		UPDATE submissions
		SET assigned_reward_id = NULL, assigned_at = NULL, assigned_by = NULL
		WHERE id = $1 AND assigned_reward_id IS NOT NULL
	`

	result, err := db.Exec(query, submissionID)
	if err != nil {
		return fmt.Errorf("failed to clear assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotAssigned
	}

	return nil
}

// AssignmentCounts reports how many submissions hold a reward and how many
// are still waiting.
type AssignmentCounts struct {
	Assigned   int64 `db:"assigned"`
	Unassigned int64 `db:"unassigned"`
}

// CountByAssignment returns submission counts with and without an assignment.
func (r *SubmissionRepository) CountByAssignment(db DBExecutor) (*AssignmentCounts, error) {
	query := `
		SELECT
			COUNT(CASE WHEN assigned_reward_id IS NOT NULL THEN 1 END) AS assigned,
			COUNT(CASE WHEN assigned_reward_id IS NULL THEN 1 END) AS unassigned
		FROM submissions
	`

	var counts AssignmentCounts
	if err := db.Get(&counts, query); err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	return &counts, nil
}

// isUniqueViolation reports whether err is a unique-constraint violation from
// the postgres driver, with a message fallback for other drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
