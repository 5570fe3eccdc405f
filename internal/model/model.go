package model

import (
	"database/sql"
	"time"
)

// Coupon statuses. ACTIVE is the only non-terminal state; every transition
// out of it is one-way.
const (
	CouponActive      = "ACTIVE"
	CouponRedeemed    = "REDEEMED"
	CouponExpired     = "EXPIRED"
	CouponDeactivated = "DEACTIVATED"
)

// Reward account statuses.
const (
	RewardAvailable = "AVAILABLE"
	RewardAssigned  = "ASSIGNED"
	RewardExpired   = "EXPIRED"
)

// CouponBatch groups coupons generated together
type CouponBatch struct {
	ID        int64     `db:"id" json:"id"`
	Size      int32     `db:"size" json:"size"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Coupon represents a single-use code in the database
type Coupon struct {
	ID         int64          `db:"id" json:"id"`
	Code       string         `db:"code" json:"code"`
	BatchID    sql.NullInt64  `db:"batch_id" json:"batch_id"`
	Status     string         `db:"status" json:"status"`
	ExpiresAt  sql.NullTime   `db:"expires_at" json:"expires_at"`
	CreatedBy  string         `db:"created_by" json:"created_by"`
	GenMethod  string         `db:"gen_method" json:"gen_method"`
	Metadata   sql.NullString `db:"metadata" json:"metadata"`
	RedeemedAt sql.NullTime   `db:"redeemed_at" json:"redeemed_at"`
	RedeemedBy sql.NullString `db:"redeemed_by" json:"redeemed_by"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// Submission is the record created when a coupon is redeemed. Exactly one
// submission exists per redeemed coupon (unique constraint on coupon_id).
type Submission struct {
	ID               int64          `db:"id" json:"id"`
	CouponID         int64          `db:"coupon_id" json:"coupon_id"`
	Contact          string         `db:"contact" json:"contact"`
	Experience       sql.NullString `db:"experience" json:"experience"`
	Preference       sql.NullString `db:"preference" json:"preference"`
	ClientMeta       sql.NullString `db:"client_meta" json:"client_meta"`
	AssignedRewardID sql.NullInt64  `db:"assigned_reward_id" json:"assigned_reward_id"`
	AssignedAt       sql.NullTime   `db:"assigned_at" json:"assigned_at"`
	AssignedBy       sql.NullString `db:"assigned_by" json:"assigned_by"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// RewardAccount is one unit of the finite reward inventory. HolderSubmissionID
// is set iff Status == ASSIGNED.
type RewardAccount struct {
	ID                 int64         `db:"id" json:"id"`
	Category           string        `db:"category" json:"category"`
	ServiceName        string        `db:"service_name" json:"service_name"`
	Status             string        `db:"status" json:"status"`
	HolderSubmissionID sql.NullInt64 `db:"holder_submission_id" json:"holder_submission_id"`
	AssignedAt         sql.NullTime  `db:"assigned_at" json:"assigned_at"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
}

// AuditEntry is an append-only record of one state-changing action.
// Before and After hold JSON snapshots of the mutated fields.
type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   int64     `db:"entity_id" json:"entity_id"`
	Before     string    `db:"before_state" json:"before_state"`
	After      string    `db:"after_state" json:"after_state"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Audit action kinds.
const (
	ActionRedeem     = "coupon.redeem"
	ActionDeactivate = "coupon.deactivate"
	ActionGenerate   = "coupon.generate"
	ActionAssign     = "reward.assign"
	ActionRemove     = "reward.remove"
)
