package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/rafflekit/engine/internal/database/databasetest"
	"github.com/rafflekit/engine/internal/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return databasetest.New(t)
}

func seedCoupon(t *testing.T, db *sqlx.DB, code, status string, expiresAt *time.Time) int64 {
	t.Helper()
	var expires sql.NullTime
	if expiresAt != nil {
		expires = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	var id int64
	err := db.Get(&id, `
		INSERT INTO coupons (code, status, expires_at, created_by, gen_method, created_at)
		VALUES ($1, $2, $3, 'seed', 'manual', $4)
		RETURNING id
	`, code, status, expires, time.Now())
	require.NoError(t, err)
	return id
}

func seedReward(t *testing.T, db *sqlx.DB, category string) int64 {
	t.Helper()
	var id int64
	err := db.Get(&id, `
		INSERT INTO reward_accounts (category, service_name, status, created_at)
		VALUES ($1, 'premium-music', $2, $3)
		RETURNING id
	`, category, model.RewardAvailable, time.Now())
	require.NoError(t, err)
	return id
}

// seedSubmission creates a redeemed coupon plus its submission and returns
// the submission id.
func seedSubmission(t *testing.T, db *sqlx.DB, code string) int64 {
	t.Helper()
	couponID := seedCoupon(t, db, code, model.CouponRedeemed, nil)
	var id int64
	err := db.Get(&id, `
		INSERT INTO submissions (coupon_id, contact, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, couponID, code+"@example.com", time.Now())
	require.NoError(t, err)
	return id
}

func couponStatus(t *testing.T, db *sqlx.DB, code string) string {
	t.Helper()
	var status string
	require.NoError(t, db.Get(&status, `SELECT status FROM coupons WHERE code = $1`, code))
	return status
}

func rewardStatus(t *testing.T, db *sqlx.DB, id int64) (string, sql.NullInt64) {
	t.Helper()
	var row struct {
		Status string        `db:"status"`
		Holder sql.NullInt64 `db:"holder_submission_id"`
	}
	require.NoError(t, db.Get(&row, `SELECT status, holder_submission_id FROM reward_accounts WHERE id = $1`, id))
	return row.Status, row.Holder
}

func auditCount(t *testing.T, db *sqlx.DB, entityType string, entityID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Get(&n, `
		SELECT COUNT(*) FROM audit_entries WHERE entity_type = $1 AND entity_id = $2
	`, entityType, entityID))
	return n
}
