package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafflekit/engine/internal/engine"
	"github.com/rafflekit/engine/internal/model"
)

// Walks one coupon through its full life: redemption, a duplicate redemption
// attempt, reward assignment, and a blocked second assignment.
func TestCouponLifecycle(t *testing.T) {
	db := newTestDB(t)
	redemption := NewRedemptionService(db)
	assignment := NewAssignmentService(db)
	ctx := context.Background()

	seedCoupon(t, db, "ABC23456", model.CouponActive, nil)
	r1 := seedReward(t, db, "music")
	r2 := seedReward(t, db, "music")

	submission, err := redemption.Redeem(ctx, "ABC23456", SubmissionFields{Contact: "alice@example.com"}, "")
	require.NoError(t, err)
	require.Equal(t, model.CouponRedeemed, couponStatus(t, db, "ABC23456"))

	_, err = redemption.Redeem(ctx, "ABC23456", SubmissionFields{Contact: "alice@example.com"}, "")
	require.Equal(t, engine.ReasonAlreadyRedeemed, engine.ReasonOf(err))

	assigned, err := assignment.Assign(ctx, submission.ID, r1, "admin-7", "")
	require.NoError(t, err)
	require.Equal(t, r1, assigned.AssignedRewardID.Int64)

	status, holder := rewardStatus(t, db, r1)
	require.Equal(t, model.RewardAssigned, status)
	require.Equal(t, submission.ID, holder.Int64)

	_, err = assignment.Assign(ctx, submission.ID, r2, "admin-7", "")
	require.Equal(t, engine.ReasonAlreadyAssigned, engine.ReasonOf(err))

	status, _ = rewardStatus(t, db, r2)
	require.Equal(t, model.RewardAvailable, status)
}
