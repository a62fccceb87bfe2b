// Package referral cascades a fixed share of each accrued profit to the
// referring user, one level deep only. Deeper chains are represented by
// their own edges and are never walked during this user's accrual.
package referral

import (
	"fmt"
	"log/slog"

	"github.com/BM-ACADEMY/alpha-sub001/internal/metrics"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/shopspring/decimal"
)

// bonusPercent is the referrer's share of the referred user's period profit.
var bonusPercent = decimal.NewFromInt(1)

type EdgeFinder interface {
	FindByReferredUser(referredUserID string) (*repository.ReferralEdge, bool, error)
}

type CreditPoster interface {
	CreditReferral(referrerUserID string, currency money.Currency, amount money.Amount, sourceRef, idempotencyKey string) (bool, error)
}

type Distributor struct {
	Edges  EdgeFinder
	Ledger CreditPoster
	Logger *slog.Logger
}

func NewDistributor(edges EdgeFinder, ledgerSvc CreditPoster, logger *slog.Logger) *Distributor {
	return &Distributor{
		Edges:  edges,
		Ledger: ledgerSvc,
		Logger: logger,
	}
}

// Distribute credits 1% of the period profit to the referrer, in the same
// currency as the referred subscription. Cross-currency conversion is never
// performed. No edge means no-op.
func (d *Distributor) Distribute(referredUserID, subscriptionID string, periodIndex int, baseProfit money.Amount, currency money.Currency) error {
	edge, found, err := d.Edges.FindByReferredUser(referredUserID)
	if err != nil {
		return fmt.Errorf("looking up referral edge: %w", err)
	}
	if !found {
		return nil
	}

	bonus := baseProfit.Percent(bonusPercent)
	if !bonus.IsPositive() {
		return nil
	}

	idempotencyKey := fmt.Sprintf("referral:%s:%d", subscriptionID, periodIndex)

	inserted, err := d.Ledger.CreditReferral(edge.ReferrerUserID, currency, bonus, subscriptionID, idempotencyKey)
	if err != nil {
		return fmt.Errorf("crediting referral bonus: %w", err)
	}

	if inserted {
		metrics.ReferralCreditsPosted.WithLabelValues(currency.String()).Inc()
		d.Logger.Info("referral bonus credited",
			"referrer_user_id", edge.ReferrerUserID,
			"referred_user_id", referredUserID,
			"subscription_id", subscriptionID,
			"period_index", periodIndex,
			"amount", bonus.String(),
			"currency", currency.String())
	}

	return nil
}
