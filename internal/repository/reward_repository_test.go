package repository

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/rafflekit/engine/internal/database/databasetest"
	"github.com/rafflekit/engine/internal/model"
)

func seedReward(t *testing.T, db *sqlx.DB, category, status string) int64 {
	t.Helper()
	var id int64
	err := db.Get(&id, `
		INSERT INTO reward_accounts (category, service_name, status, created_at)
		VALUES ($1, 'premium-music', $2, $3)
		RETURNING id
	`, category, status, time.Now())
	require.NoError(t, err)
	return id
}

func TestTryReserve(t *testing.T) {
	db := databasetest.New(t)
	repo := NewRewardRepository()

	id := seedReward(t, db, "music", model.RewardAvailable)
	now := time.Now()

	require.NoError(t, repo.TryReserve(db, id, 1, now))

	account, err := repo.GetByID(db, id)
	require.NoError(t, err)
	require.Equal(t, model.RewardAssigned, account.Status)
	require.True(t, account.HolderSubmissionID.Valid)
	require.Equal(t, int64(1), account.HolderSubmissionID.Int64)

	// Second reservation loses: zero rows match AVAILABLE.
	err = repo.TryReserve(db, id, 2, now)
	require.ErrorIs(t, err, ErrNotAvailable)

	// First holder is untouched by the losing attempt.
	account, err = repo.GetByID(db, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), account.HolderSubmissionID.Int64)
}

func TestTryReserveExpiredAccount(t *testing.T) {
	db := databasetest.New(t)
	repo := NewRewardRepository()

	id := seedReward(t, db, "music", model.RewardExpired)
	require.ErrorIs(t, repo.TryReserve(db, id, 1, time.Now()), ErrNotAvailable)
}

func TestRelease(t *testing.T) {
	db := databasetest.New(t)
	repo := NewRewardRepository()

	id := seedReward(t, db, "music", model.RewardAvailable)
	require.NoError(t, repo.TryReserve(db, id, 7, time.Now()))

	// Wrong expected holder: the slot may have been concurrently reassigned.
	require.ErrorIs(t, repo.Release(db, id, 8), ErrHolderMismatch)

	require.NoError(t, repo.Release(db, id, 7))

	account, err := repo.GetByID(db, id)
	require.NoError(t, err)
	require.Equal(t, model.RewardAvailable, account.Status)
	require.False(t, account.HolderSubmissionID.Valid)
	require.False(t, account.AssignedAt.Valid)

	// Releasing an already-released slot fails the holder condition.
	require.ErrorIs(t, repo.Release(db, id, 7), ErrHolderMismatch)
}

func TestGetByIDNotFound(t *testing.T) {
	db := databasetest.New(t)
	repo := NewRewardRepository()

	_, err := repo.GetByID(db, 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInventorySummary(t *testing.T) {
	db := databasetest.New(t)
	repo := NewRewardRepository()

	seedReward(t, db, "music", model.RewardAvailable)
	seedReward(t, db, "music", model.RewardAvailable)
	assigned := seedReward(t, db, "music", model.RewardAvailable)
	require.NoError(t, repo.TryReserve(db, assigned, 1, time.Now()))
	seedReward(t, db, "video", model.RewardExpired)

	counts, err := repo.InventorySummary(db)
	require.NoError(t, err)
	require.Equal(t, []CategoryCount{
		{Category: "music", Status: model.RewardAssigned, Count: 1},
		{Category: "music", Status: model.RewardAvailable, Count: 2},
		{Category: "video", Status: model.RewardExpired, Count: 1},
	}, counts)
}
