package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafflekit/engine/internal/database/databasetest"
	"github.com/rafflekit/engine/internal/model"
)

func TestAuditAppendAndList(t *testing.T) {
	db := databasetest.New(t)
	repo := NewAuditRepository()

	entries := []model.AuditEntry{
		{ActorID: "alice", Action: model.ActionRedeem, EntityType: "coupon", EntityID: 1,
			Before: `{"status":"ACTIVE"}`, After: `{"status":"REDEEMED"}`},
		{ActorID: "admin-7", Action: model.ActionAssign, EntityType: "reward_account", EntityID: 42,
			Before: `{"status":"AVAILABLE"}`, After: `{"status":"ASSIGNED"}`},
		{ActorID: "admin-7", Action: model.ActionRemove, EntityType: "reward_account", EntityID: 42,
			Before: `{"status":"ASSIGNED"}`, After: `{"status":"AVAILABLE"}`},
	}
	for i := range entries {
		require.NoError(t, repo.Append(db, &entries[i]))
	}

	trail, err := repo.ListByEntity(db, "reward_account", 42)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	// Append order is preserved.
	require.Equal(t, model.ActionAssign, trail[0].Action)
	require.Equal(t, model.ActionRemove, trail[1].Action)

	trail, err = repo.ListByEntity(db, "coupon", 1)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, "alice", trail[0].ActorID)
}
