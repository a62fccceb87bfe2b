// Package accrual turns active subscriptions into periodic profit credits.
// The runner is logically single-writer per subscription: the compare-and-
// swap on the accrual cursor serializes concurrent runs, while different
// subscriptions proceed in parallel on a worker pool.
package accrual

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/internal/catalog"
	"github.com/BM-ACADEMY/alpha-sub001/internal/fault"
	"github.com/BM-ACADEMY/alpha-sub001/internal/metrics"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/BM-ACADEMY/alpha-sub001/internal/stream"
	"github.com/panjf2000/ants/v2"
)

// TopicProfitAccrued carries one event per posted accrual credit so the
// referral distributor can cascade the bonus without being part of the
// accrual transaction. Distributor failure never rolls back the credit.
const TopicProfitAccrued = "profit.accrued"

type ProfitAccruedEvent struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	PeriodIndex    int    `json:"period_index"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

// CreditPoster is the slice of the ledger service the runner needs.
type CreditPoster interface {
	CreditAccrual(userID string, currency money.Currency, amount money.Amount, sourceRef, idempotencyKey string) (bool, error)
}

// Snapshotter supplies the immutable percentage-table snapshot taken at run
// start. The live catalog is never consulted mid-run.
type Snapshotter interface {
	Snapshot() (*catalog.Snapshot, error)
}

type Runner struct {
	SubscriptionRepo repository.SubscriptionRepository
	PlanRepo         repository.PlanRepository
	Ledger           CreditPoster
	Catalog          Snapshotter
	Producer         stream.Producer
	Logger           *slog.Logger
	PoolSize         int
	Now              func() time.Time
}

func NewRunner(r *Runner) *Runner {
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.PoolSize <= 0 {
		r.PoolSize = 8
	}
	return r
}

// Run processes every subscription whose cursor is behind the current
// period boundary. Safe to re-run after a crash: every period credit is
// idempotency-keyed, so re-posting is a no-op.
func (r *Runner) Run() error {
	start := time.Now()
	defer func() {
		metrics.AccrualRunDuration.Observe(time.Since(start).Seconds())
	}()

	now := r.Now().UTC()

	snapshot, err := r.Catalog.Snapshot()
	if err != nil {
		return fmt.Errorf("taking catalog snapshot: %w", err)
	}

	subs, err := r.SubscriptionRepo.DueForAccrual(now)
	if err != nil {
		return fmt.Errorf("listing due subscriptions: %w", err)
	}

	if len(subs) == 0 {
		return nil
	}

	categories, err := r.planCategories(subs)
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(r.PoolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup

	for i := range subs {
		sub := subs[i]

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			r.accrueOne(&sub, categories[sub.PlanID], snapshot, now)
		})
		if err != nil {
			wg.Done()
			r.Logger.Error("submitting accrual task", "subscription_id", sub.ID, "error", err)
		}
	}

	wg.Wait()

	return nil
}

func (r *Runner) planCategories(subs []repository.Subscription) (map[string]string, error) {
	categories := make(map[string]string)

	for _, sub := range subs {
		if _, ok := categories[sub.PlanID]; ok {
			continue
		}

		plan, found, err := r.PlanRepo.GetOne(sub.PlanID)
		if err != nil {
			return nil, err
		}
		if !found {
			// Leave the category empty; the snapshot lookup fails closed
			// and the subscription is skipped with a log line.
			categories[sub.PlanID] = ""
			continue
		}

		categories[sub.PlanID] = plan.Category
	}

	return categories, nil
}

// accrueOne posts one credit per missed period and advances the cursor.
// A malformed subscription is skipped and logged; it never aborts the batch.
func (r *Runner) accrueOne(sub *repository.Subscription, category string, snapshot *catalog.Snapshot, now time.Time) {
	currency, err := money.ParseCurrency(sub.Currency)
	if err != nil {
		metrics.AccrualSubscriptionsSkipped.WithLabelValues("error").Inc()
		r.Logger.Error("skipping subscription with unknown currency", "subscription_id", sub.ID, "currency", sub.Currency)
		return
	}

	// Fail closed: no matching percentage config means no accrual at all
	// for this subscription, even though the rate itself was locked at
	// purchase time.
	if _, err := snapshot.Resolve(category, currency); err != nil {
		metrics.AccrualSubscriptionsSkipped.WithLabelValues("missing_config").Inc()
		r.Logger.Warn("skipping subscription without percentage config",
			"subscription_id", sub.ID, "category", category, "currency", currency)
		return
	}

	if !sub.AccrualCursor.Valid || !sub.LockInEnd.Valid {
		metrics.AccrualSubscriptionsSkipped.WithLabelValues("error").Inc()
		r.Logger.Error("skipping subscription without accrual window", "subscription_id", sub.ID)
		return
	}

	periods := DuePeriods(
		sub.AccrualCursor.Time.UTC(),
		Cadence(sub.Cadence),
		sub.LockInEnd.Time.UTC(),
		now,
		sub.NextPeriodIndex,
	)

	for _, period := range periods {
		amount := PeriodProfit(money.Amount(sub.CapitalAmount), sub.LockedProfitPercent, sub.LockInDays, period.Days)

		inserted := false
		if amount.IsPositive() {
			key := fmt.Sprintf("accrual:%s:%d", sub.ID, period.Index)

			inserted, err = r.Ledger.CreditAccrual(sub.UserID, currency, amount, sub.ID, key)
			if err != nil {
				if fault.IsNotFound(err) {
					metrics.AccrualSubscriptionsSkipped.WithLabelValues("missing_config").Inc()
					r.Logger.Warn("skipping subscription", "subscription_id", sub.ID, "error", err)
					return
				}
				metrics.AccrualSubscriptionsSkipped.WithLabelValues("error").Inc()
				r.Logger.Error("posting accrual credit", "subscription_id", sub.ID, "period", period.Index, "error", err)
				return
			}
		}

		advanced, err := r.SubscriptionRepo.AdvanceCursor(sub.ID, period.Start, period.End, period.Index+1)
		if err != nil {
			r.Logger.Error("advancing accrual cursor", "subscription_id", sub.ID, "error", err)
			return
		}
		if !advanced {
			// A concurrent run owns this subscription; its credits carry
			// the same idempotency keys, so stopping here is safe.
			metrics.AccrualSubscriptionsSkipped.WithLabelValues("stale_cursor").Inc()
			return
		}

		if inserted {
			metrics.AccrualCreditsPosted.WithLabelValues(currency.String()).Inc()
			r.publishAccrued(sub, period, amount, currency)
		} else if amount.IsPositive() {
			metrics.AccrualDuplicatesSkipped.Inc()
		}
	}
}

func (r *Runner) publishAccrued(sub *repository.Subscription, period Period, amount money.Amount, currency money.Currency) {
	if r.Producer == nil {
		return
	}

	event := &ProfitAccruedEvent{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PeriodIndex:    period.Index,
		Amount:         amount.String(),
		Currency:       currency.String(),
	}

	message, err := json.Marshal(event)
	if err != nil {
		r.Logger.Error("encoding profit.accrued event", "subscription_id", sub.ID, "error", err)
		return
	}

	if err := r.Producer.ProduceMessage(TopicProfitAccrued, string(message)); err != nil {
		// The user's own credit is already posted; a lost event only delays
		// the referral bonus until the distributor catches up.
		r.Logger.Error("publishing profit.accrued event", "subscription_id", sub.ID, "error", err)
	}
}
