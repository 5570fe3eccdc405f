package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/rafflekit/engine/internal/database/databasetest"
	"github.com/rafflekit/engine/internal/model"
)

func seedCoupon(t *testing.T, db *sqlx.DB, code, status string, expiresAt *time.Time) int64 {
	t.Helper()
	var id int64
	err := db.Get(&id, `
		INSERT INTO coupons (code, status, expires_at, created_by, gen_method, created_at)
		VALUES ($1, $2, $3, 'seed', 'manual', $4)
		RETURNING id
	`, code, status, nullableTime(expiresAt), time.Now())
	require.NoError(t, err)
	return id
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func TestGetByCode(t *testing.T) {
	db := databasetest.New(t)
	repo := NewCouponRepository()

	seedCoupon(t, db, "ABC23456", model.CouponActive, nil)

	coupon, err := repo.GetByCode(db, "ABC23456")
	require.NoError(t, err)
	require.Equal(t, "ABC23456", coupon.Code)
	require.Equal(t, model.CouponActive, coupon.Status)

	_, err = repo.GetByCode(db, "NOPE2345")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTryMarkRedeemed(t *testing.T) {
	db := databasetest.New(t)
	repo := NewCouponRepository()

	id := seedCoupon(t, db, "ABC23456", model.CouponActive, nil)
	now := time.Now()

	require.NoError(t, repo.TryMarkRedeemed(db, id, "alice@example.com", now))

	coupon, err := repo.GetByCode(db, "ABC23456")
	require.NoError(t, err)
	require.Equal(t, model.CouponRedeemed, coupon.Status)
	require.True(t, coupon.RedeemedBy.Valid)
	require.Equal(t, "alice@example.com", coupon.RedeemedBy.String)

	// Not ACTIVE anymore: the conditional update touches zero rows.
	err = repo.TryMarkRedeemed(db, id, "bob@example.com", now)
	require.ErrorIs(t, err, ErrNotActive)

	// Winner's fields survive the losing attempt.
	coupon, err = repo.GetByCode(db, "ABC23456")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", coupon.RedeemedBy.String)
}

func TestTryMarkDeactivated(t *testing.T) {
	db := databasetest.New(t)
	repo := NewCouponRepository()

	id := seedCoupon(t, db, "DEAC2345", model.CouponActive, nil)
	require.NoError(t, repo.TryMarkDeactivated(db, id))

	coupon, err := repo.GetByCode(db, "DEAC2345")
	require.NoError(t, err)
	require.Equal(t, model.CouponDeactivated, coupon.Status)

	// Terminal states stay terminal.
	require.ErrorIs(t, repo.TryMarkDeactivated(db, id), ErrNotActive)

	redeemed := seedCoupon(t, db, "USED2345", model.CouponRedeemed, nil)
	require.ErrorIs(t, repo.TryMarkDeactivated(db, redeemed), ErrNotActive)
}

func TestMarkExpiredBatch(t *testing.T) {
	db := databasetest.New(t)
	repo := NewCouponRepository()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	seedCoupon(t, db, "PAST2345", model.CouponActive, &past)
	seedCoupon(t, db, "FUTR2345", model.CouponActive, &future)
	seedCoupon(t, db, "NOEX2345", model.CouponActive, nil)
	seedCoupon(t, db, "GONE2345", model.CouponRedeemed, &past)

	count, err := repo.MarkExpiredBatch(db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	coupon, err := repo.GetByCode(db, "PAST2345")
	require.NoError(t, err)
	require.Equal(t, model.CouponExpired, coupon.Status)

	for _, code := range []string{"FUTR2345", "NOEX2345"} {
		coupon, err := repo.GetByCode(db, code)
		require.NoError(t, err)
		require.Equal(t, model.CouponActive, coupon.Status)
	}

	// Already-redeemed coupons are never touched by the sweep.
	coupon, err = repo.GetByCode(db, "GONE2345")
	require.NoError(t, err)
	require.Equal(t, model.CouponRedeemed, coupon.Status)

	// Idempotent: nothing left to transition with the same clock.
	count, err = repo.MarkExpiredBatch(db, now)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateBatch(t *testing.T) {
	db := databasetest.New(t)
	repo := NewCouponRepository()

	batch := &model.CouponBatch{Size: 1100, CreatedBy: "admin"}
	require.NoError(t, repo.CreateBatchRecord(db, batch))
	require.NotZero(t, batch.ID)

	now := time.Now()
	coupons := make([]model.Coupon, 0, 1100)
	for i := 0; i < 1100; i++ {
		coupons = append(coupons, model.Coupon{
			Code:      codeForIndex(i),
			BatchID:   sql.NullInt64{Int64: batch.ID, Valid: true},
			Status:    model.CouponActive,
			CreatedBy: "admin",
			GenMethod: "aes_batch",
			CreatedAt: now,
		})
	}

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.CreateBatch(tx, coupons))
	require.NoError(t, tx.Commit())

	counts, err := repo.CountByStatus(db)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	require.Equal(t, model.CouponActive, counts[0].Status)
	require.Equal(t, int64(1100), counts[0].Count)
}

// codeForIndex fabricates unique 8-char codes for batch tests.
func codeForIndex(i int) string {
	const pool = "ABCDEFGHJK"
	b := make([]byte, 8)
	for pos := 7; pos >= 0; pos-- {
		b[pos] = pool[i%10]
		i /= 10
	}
	return string(b)
}
