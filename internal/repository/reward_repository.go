package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rafflekit/engine/internal/model"
)

// RewardRepository handles reward-account inventory operations
type RewardRepository struct {
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository() *RewardRepository {
	return &RewardRepository{}
}

// GetByID retrieves a reward account by id
func (r *RewardRepository) GetByID(db DBExecutor, id int64) (*model.RewardAccount, error) {
	query := `
		SELECT id, category, service_name, status, holder_submission_id, assigned_at, created_at
		FROM reward_accounts
		WHERE id = $1
	`

	var account model.RewardAccount
	err := db.Get(&account, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reward account: %w", err)
	}

	return &account, nil
}

// TryReserve transitions a reward account AVAILABLE -> ASSIGNED and records
// the holding submission, all in a single conditional update. Zero affected
// rows means another actor already reserved it; this closes the
// time-of-check/time-of-use gap that a read-then-write sequence would leave.
func (r *RewardRepository) TryReserve(db DBExecutor, rewardID, holderSubmissionID int64, now time.Time) error {
	query := `
		UPDATE reward_accounts
		SET status = $1, holder_submission_id = $2, assigned_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := db.Exec(query, model.RewardAssigned, holderSubmissionID, now, rewardID, model.RewardAvailable)
	if err != nil {
		return fmt.Errorf("failed to reserve reward account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotAvailable
	}

	return nil
}

// Release transitions a reward account back to AVAILABLE and clears the
// holder, but only if the current holder matches the expected submission.
// The holder check defends against releasing a slot that was concurrently
// reassigned to someone else.
func (r *RewardRepository) Release(db DBExecutor, rewardID, expectedHolderSubmissionID int64) error {
	query := `
		UPDATE reward_accounts
		SET status = $1, holder_submission_id = NULL, assigned_at = NULL
		WHERE id = $2 AND status = $3 AND holder_submission_id = $4
	`

	result, err := db.Exec(query, model.RewardAvailable, rewardID, model.RewardAssigned, expectedHolderSubmissionID)
	if err != nil {
		return fmt.Errorf("failed to release reward account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrHolderMismatch
	}

	return nil
}

// CategoryCount is one row of the inventory summary.
type CategoryCount struct {
	Category string `db:"category"`
	Status   string `db:"status"`
	Count    int64  `db:"count"`
}

// InventorySummary returns reward-account counts grouped by category and
// status. Read-only; consumed by the reporting surface.
func (r *RewardRepository) InventorySummary(db DBExecutor) ([]CategoryCount, error) {
	query := `
		SELECT category, status, COUNT(*) AS count
		FROM reward_accounts
		GROUP BY category, status
		ORDER BY category, status
	`

	var counts []CategoryCount
	if err := db.Select(&counts, query); err != nil {
		return nil, fmt.Errorf("failed to summarize reward inventory: %w", err)
	}

	return counts, nil
}
