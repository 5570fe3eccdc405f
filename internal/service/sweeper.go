package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/rafflekit/engine/internal/metrics"
	"github.com/rafflekit/engine/internal/repository"
)

// ErrSweepThrottled is returned by Trigger when on-demand sweeps arrive
// faster than the configured rate.
var ErrSweepThrottled = errors.New("sweep trigger throttled")

// Sweeper periodically transitions stale ACTIVE coupons to EXPIRED. It only
// touches the coupon store: an expired, never-redeemed coupon never held a
// reward.
type Sweeper struct {
	postgres   *sqlx.DB
	couponRepo *repository.CouponRepository
	interval   time.Duration
	limiter    *rate.Limiter
}

// NewSweeper creates a sweeper that runs every interval and additionally
// accepts on-demand triggers up to the given rate.
func NewSweeper(postgres *sqlx.DB, interval time.Duration, triggerRate float64, triggerBurst int) *Sweeper {
	return &Sweeper{
		postgres:   postgres,
		couponRepo: repository.NewCouponRepository(),
		interval:   interval,
		limiter:    rate.NewLimiter(rate.Limit(triggerRate), triggerBurst),
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx, time.Now()); err != nil {
				log.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

// Trigger runs one on-demand sweep, rate limited.
func (s *Sweeper) Trigger(ctx context.Context) (int64, error) {
	if !s.limiter.Allow() {
		return 0, ErrSweepThrottled
	}
	return s.SweepExpired(ctx, time.Now())
}

// SweepExpired transitions every ACTIVE coupon past its expiry to EXPIRED and
// returns the number transitioned. Idempotent: a second run with the same
// clock finds nothing left to transition.
func (s *Sweeper) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.couponRepo.MarkExpiredBatch(s.postgres, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired coupons: %w", err)
	}

	if count > 0 {
		metrics.SweptCoupons.Add(float64(count))
		log.Info().Int64("count", count).Time("as_of", now).Msg("expired coupons swept")
	}

	return count, nil
}
