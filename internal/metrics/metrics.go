// Package metrics provides Prometheus instrumentation for the settlement
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccrualCreditsPosted counts profit credits posted to wallets,
	// partitioned by currency.
	AccrualCreditsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_accrual_credits_posted_total",
		Help: "Profit accrual credits posted to wallets",
	}, []string{"currency"})

	// AccrualDuplicatesSkipped counts ledger appends that were no-ops
	// because the idempotency key was already used. A non-zero value after
	// a crash recovery is expected, not an error.
	AccrualDuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_accrual_duplicates_skipped_total",
		Help: "Accrual credits skipped due to an already-used idempotency key",
	})

	// AccrualSubscriptionsSkipped counts subscriptions skipped in a run,
	// partitioned by reason (missing_config, stale_cursor, error).
	AccrualSubscriptionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_accrual_subscriptions_skipped_total",
		Help: "Subscriptions skipped during an accrual run",
	}, []string{"reason"})

	// AccrualRunDuration tracks how long a full accrual run takes.
	AccrualRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_accrual_run_duration_seconds",
		Help:    "Duration of accrual scheduler runs",
		Buckets: prometheus.DefBuckets,
	})

	// ReferralCreditsPosted counts referral bonuses credited.
	ReferralCreditsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_referral_credits_posted_total",
		Help: "Referral bonus credits posted to referrer wallets",
	}, []string{"currency"})

	// RedeemDecisions counts redemption decisions by outcome.
	RedeemDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_redeem_decisions_total",
		Help: "Redemption requests decided by admins",
	}, []string{"outcome"})

	// SubscriptionsSettled counts subscriptions moved to the settled state.
	SubscriptionsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_subscriptions_settled_total",
		Help: "Subscriptions settled after lock-in expiry",
	}, []string{"currency"})

	// HTTPRequestsTotal counts HTTP requests by method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "status"})
)
