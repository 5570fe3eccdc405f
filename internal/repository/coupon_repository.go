package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rafflekit/engine/internal/model"
)

// CouponRepository handles coupon data operations
type CouponRepository struct {
	// DB-only repository - no in-process caches
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{}
}

// GetByCode retrieves a coupon by its code
func (r *CouponRepository) GetByCode(db DBExecutor, code string) (*model.Coupon, error) {
	query := `
		SELECT id, code, batch_id, status, expires_at, created_by, gen_method,
		       metadata, redeemed_at, redeemed_by, created_at
		FROM coupons
		WHERE code = $1
	`

	var coupon model.Coupon
	err := db.Get(&coupon, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return &coupon, nil
}

// TryMarkRedeemed transitions a coupon ACTIVE -> REDEEMED with a single
// conditional update. A zero affected-row count means the coupon was not
// ACTIVE anymore (already redeemed, expired or deactivated); this check is
// the sole defense against two concurrent redemptions racing each other.
func (r *CouponRepository) TryMarkRedeemed(db DBExecutor, couponID int64, redeemedBy string, now time.Time) error {
	query := `
		UPDATE coupons
		SET status = $1, redeemed_at = $2, redeemed_by = $3
		WHERE id = $4 AND status = $5
	`

	result, err := db.Exec(query, model.CouponRedeemed, now, redeemedBy, couponID, model.CouponActive)
	if err != nil {
		return fmt.Errorf("failed to mark coupon as redeemed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotActive
	}

	return nil
}

// TryMarkDeactivated transitions a coupon ACTIVE -> DEACTIVATED using the
// same conditional-update pattern as TryMarkRedeemed.
func (r *CouponRepository) TryMarkDeactivated(db DBExecutor, couponID int64) error {
	query := `
		UPDATE coupons
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	result, err := db.Exec(query, model.CouponDeactivated, couponID, model.CouponActive)
	if err != nil {
		return fmt.Errorf("failed to deactivate coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotActive
	}

	return nil
}

// MarkExpiredBatch transitions every ACTIVE coupon whose expiry has passed to
// EXPIRED in one conditional bulk update and returns the number of rows
// transitioned. Running it twice with the same clock transitions nothing the
// second time.
func (r *CouponRepository) MarkExpiredBatch(db DBExecutor, asOf time.Time) (int64, error) {
	query := `
		UPDATE coupons
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3
	`

	result, err := db.Exec(query, model.CouponExpired, model.CouponActive, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to expire coupons: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

// CreateBatchRecord creates the batch row grouping a generation run (this
// sets batch.ID).
func (r *CouponRepository) CreateBatchRecord(db DBExecutor, batch *model.CouponBatch) error {
	query := `
		INSERT INTO coupon_batches (size, created_by, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}

	err := db.Get(&batch.ID, query, batch.Size, batch.CreatedBy, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create coupon batch: %w", err)
	}

	return nil
}

// CreateBatch inserts pre-generated coupons in chunks within an existing
// transaction.
func (r *CouponRepository) CreateBatch(tx *sqlx.Tx, coupons []model.Coupon) error {
	// Chunk size keeps each statement under the driver parameter limit.
	batchSize := 500

	for i := 0; i < len(coupons); i += batchSize {
		end := i + batchSize
		if end > len(coupons) {
			end = len(coupons)
		}

		if err := r.insertCouponBatch(tx, coupons[i:end]); err != nil {
			return fmt.Errorf("failed to insert coupon batch: %w", err)
		}
	}

	return nil
}

// insertCouponBatch inserts a chunk of coupons using a single query
func (r *CouponRepository) insertCouponBatch(tx *sqlx.Tx, coupons []model.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	valuesClause := make([]string, len(coupons))
	args := make([]interface{}, 0, len(coupons)*7)

	for i, c := range coupons {
		valuesClause[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			i*7+1, i*7+2, i*7+3, i*7+4, i*7+5, i*7+6, i*7+7)
		args = append(args, c.Code, c.BatchID, c.Status, c.ExpiresAt, c.CreatedBy, c.GenMethod, c.CreatedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO coupons (code, batch_id, status, expires_at, created_by, gen_method, created_at)
		VALUES %s
	`, strings.Join(valuesClause, ", "))

	_, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute batch insert: %w", err)
	}

	return nil
}

// StatusCount is one row of a coupons-by-status aggregate.
type StatusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

// CountByStatus returns the number of coupons in each status.
func (r *CouponRepository) CountByStatus(db DBExecutor) ([]StatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM coupons
		GROUP BY status
		ORDER BY status
	`

	var counts []StatusCount
	if err := db.Select(&counts, query); err != nil {
		return nil, fmt.Errorf("failed to count coupons by status: %w", err)
	}

	return counts, nil
}
