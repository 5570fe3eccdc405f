package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedeemDuration tracks the latency of coupon redemption
	RedeemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "coupon_redeem_duration_seconds",
			Help: "Duration of coupon redemption requests in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"status"}, // success, conflict or failed
	)

	// AssignDuration tracks the latency of reward assignment
	AssignDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reward_assign_duration_seconds",
			Help: "Duration of reward assignment requests in seconds",
			Buckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
			},
		},
		[]string{"status"},
	)

	// SweptCoupons counts coupons transitioned to EXPIRED by the sweeper
	SweptCoupons = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_swept_total",
			Help: "Total number of coupons transitioned to EXPIRED by the sweeper",
		},
	)
)

// RecordRedeemDuration records the duration of a redemption request
func RecordRedeemDuration(status string, duration float64) {
	RedeemDuration.WithLabelValues(status).Observe(duration)
}

// RecordAssignDuration records the duration of an assignment request
func RecordAssignDuration(status string, duration float64) {
	AssignDuration.WithLabelValues(status).Observe(duration)
}
